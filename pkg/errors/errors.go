package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the categories of errors surfaced to callers
type ErrorType string

const (
	ErrorTypeValidation           ErrorType = "validation"
	ErrorTypeNotFound             ErrorType = "not_found"
	ErrorTypeUnauthenticated      ErrorType = "unauthenticated"
	ErrorTypeInternal             ErrorType = "internal"
	ErrorTypePlanInsufficient     ErrorType = "plan_insufficient"
	ErrorTypeCooldownActive       ErrorType = "cooldown_active"
	ErrorTypeInvalidPlanSelection ErrorType = "invalid_plan_selection"
	ErrorTypeProviderUnavailable  ErrorType = "provider_unavailable"
	ErrorTypeSignatureInvalid     ErrorType = "signature_invalid"
	ErrorTypeNoBillingCustomer    ErrorType = "no_billing_customer"
)

// AppError represents a structured application error. Meta is merged into
// the JSON body next to the message.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Cause      error                  `json:"-"`
	Meta       map[string]interface{} `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithMeta attaches a response field and returns the same error.
func (e *AppError) WithMeta(key string, value interface{}) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		Details:    detail,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUnauthenticatedError creates an error for requests without a valid identity
func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthenticated,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewPlanInsufficientError is returned when the caller's plan is below the feature tier
func NewPlanInsufficientError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypePlanInsufficient,
		Message:    message,
		StatusCode: http.StatusPaymentRequired,
	}
}

// NewCooldownActiveError is returned while a feature cooldown window is open
func NewCooldownActiveError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeCooldownActive,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewInvalidPlanSelectionError creates an error for unknown plan/interval pairs
func NewInvalidPlanSelectionError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidPlanSelection,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewProviderUnavailableError wraps a failed upstream call. Billing failures
// use 502, inference and datastore failures use 503.
func NewProviderUnavailableError(message string, statusCode int, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProviderUnavailable,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewSignatureInvalidError creates an error for webhook payloads that fail verification
func NewSignatureInvalidError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeSignatureInvalid,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewNoBillingCustomerError creates an error for users without a usable billing customer
func NewNoBillingCustomerError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNoBillingCustomer,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
