package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"plan-gate-server/internal/domain"
	apperrors "plan-gate-server/pkg/errors"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	tokenContextKey     contextKey = "token"
	requestIDContextKey contextKey = "request_id"
)

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) (*domain.SupabaseUser, bool) {
	user, ok := r.Context().Value(userContextKey).(*domain.SupabaseUser)
	return user, ok
}

// GetTokenFromContext extracts the authentication token from request context
func GetTokenFromContext(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(tokenContextKey).(string)
	return token, ok
}

// GetRequestID returns the id assigned by RequestIDMiddleware
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}

// writeError writes an error response (helper function)
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]interface{}{"error": message})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAppError writes the message plus any meta fields. Cooldown errors
// also get a Retry-After header.
func writeAppError(w http.ResponseWriter, appErr *apperrors.AppError) {
	body := map[string]interface{}{"error": appErr.Message}
	for k, v := range appErr.Meta {
		body[k] = v
	}
	if secs, ok := appErr.Meta["retry_after_seconds"].(int64); ok {
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeJSON(w, appErr.StatusCode, body)
}

// toAppError maps service errors onto HTTP errors. upgradeURL is attached to
// plan denials.
func toAppError(err error, upgradeURL string) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return apperrors.NewValidationError(validation.Message, validation.Field)
	}

	var insufficient *domain.PlanInsufficientError
	if errors.As(err, &insufficient) {
		return apperrors.NewPlanInsufficientError(insufficient.Message).
			WithMeta("required_plan", string(insufficient.Required)).
			WithMeta("current_plan", string(insufficient.Current)).
			WithMeta("upgrade_url", upgradeURL)
	}

	var cooling *domain.CooldownActiveError
	if errors.As(err, &cooling) {
		return apperrors.NewCooldownActiveError(cooling.Message).
			WithMeta("retry_at", ceilSecond(cooling.RetryAt).Format(time.RFC3339)).
			WithMeta("retry_after_seconds", retryAfterSeconds(cooling.Remaining))
	}

	switch {
	case errors.Is(err, domain.ErrInvalidPlanSelection):
		return apperrors.NewInvalidPlanSelectionError("Invalid plan selection")
	case errors.Is(err, domain.ErrNoBillingCustomer):
		return apperrors.NewNoBillingCustomerError("No billing account found. Start a checkout first.")
	case errors.Is(err, domain.ErrUnknownFeature):
		return apperrors.NewNotFoundError("Unknown feature")
	case errors.Is(err, domain.ErrInvalidToken):
		return apperrors.NewUnauthenticatedError("Invalid token")
	case errors.Is(err, domain.ErrSignatureInvalid):
		return apperrors.NewSignatureInvalidError("Bad signature", err)
	case errors.Is(err, domain.ErrProviderUnavailable):
		return apperrors.NewProviderUnavailableError("Billing provider unavailable. Please try again later.", http.StatusBadGateway, err)
	case errors.Is(err, domain.ErrInferenceUnavailable):
		return apperrors.NewProviderUnavailableError("Generation service unavailable. Please try again later.", http.StatusServiceUnavailable, err)
	case errors.Is(err, domain.ErrDatastoreNotConfigured):
		return apperrors.NewProviderUnavailableError("Datastore is not configured on the server.", http.StatusServiceUnavailable, err)
	case errors.Is(err, domain.ErrAppURLNotConfigured):
		return apperrors.NewInternalError("APP_URL is not configured on the server.", err)
	default:
		return apperrors.NewInternalError("Unexpected server error.", err)
	}
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ceilSecond rounds up to a whole second in UTC so a client waiting until
// the formatted instant is never early.
func ceilSecond(t time.Time) time.Time {
	t = t.UTC()
	if t.Nanosecond() > 0 {
		t = t.Truncate(time.Second).Add(time.Second)
	}
	return t
}

// responder is embedded by handlers that map service errors.
type responder struct {
	upgradeURL string
	logger     domain.Logger
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err, rs.upgradeURL)
	if appErr.StatusCode >= http.StatusInternalServerError {
		rs.logger.Error("Request failed", err, "path", r.URL.Path, "status", appErr.StatusCode, "request_id", GetRequestID(r))
	} else {
		rs.logger.Debug("Request rejected", "path", r.URL.Path, "status", appErr.StatusCode, "type", appErr.Type)
	}
	writeAppError(w, appErr)
}
