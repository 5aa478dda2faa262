package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidToken           = errors.New("invalid token")
	ErrInvalidPlanSelection   = errors.New("invalid plan selection")
	ErrNoBillingCustomer      = errors.New("no billing customer")
	ErrProviderUnavailable    = errors.New("billing provider unavailable")
	ErrInferenceUnavailable   = errors.New("inference provider unavailable")
	ErrDatastoreNotConfigured = errors.New("datastore not configured")
	ErrUnknownFeature         = errors.New("unknown feature")
	ErrSignatureInvalid       = errors.New("webhook signature invalid")
	ErrAppURLNotConfigured    = errors.New("app url not configured")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// SchemaDriftError reports that an optional column is missing from the
// datastore schema. Repositories translate raw driver errors into it once.
type SchemaDriftError struct {
	Table  string
	Column string
	Code   string
	Err    error
}

func (e *SchemaDriftError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema drift on %s.%s (%s)", e.Table, e.Column, e.Code)
	}
	return fmt.Sprintf("schema drift on %s (%s)", e.Table, e.Code)
}

func (e *SchemaDriftError) Unwrap() error {
	return e.Err
}

// IsSchemaDrift reports whether err is or wraps a SchemaDriftError.
func IsSchemaDrift(err error) bool {
	var drift *SchemaDriftError
	return errors.As(err, &drift)
}

// PlanInsufficientError is returned when the resolved plan is below a
// feature's minimum tier.
type PlanInsufficientError struct {
	Feature  FeatureKey
	Required Plan
	Current  Plan
	Message  string
}

func (e *PlanInsufficientError) Error() string {
	return fmt.Sprintf("feature %s requires %s plan (current %s)", e.Feature, e.Required, e.Current)
}

// CooldownActiveError is returned while a feature's cooldown window is open.
type CooldownActiveError struct {
	Feature   FeatureKey
	RetryAt   time.Time
	Remaining time.Duration
	Message   string
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("feature %s cooling down until %s", e.Feature, e.RetryAt.Format(time.RFC3339))
}
