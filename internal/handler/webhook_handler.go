package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/metrics"
)

const maxWebhookBodyBytes = 1 << 20

// EventReconciler applies verified billing events.
type EventReconciler interface {
	HandleEvent(ctx context.Context, event *domain.BillingEvent) error
}

// WebhookHandler receives billing provider webhooks. A nil verifier means no
// signing secret is configured.
type WebhookHandler struct {
	verifier   domain.EventVerifier
	reconciler EventReconciler
	logger     domain.Logger
}

func NewWebhookHandler(verifier domain.EventVerifier, reconciler EventReconciler, logger domain.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, reconciler: reconciler, logger: logger}
}

// HandleStripe verifies and reconciles one delivery. Processing failures
// return 500 so the provider retries.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			writeError(w, status, "Payload too large")
			return
		}
		status = http.StatusBadRequest
		writeError(w, status, "Invalid payload")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if h.verifier == nil || signature == "" {
		h.logger.Warn("Webhook accepted without verification", "has_secret", h.verifier != nil, "has_signature", signature != "")
		writeJSON(w, status, map[string]interface{}{"received": true, "verified": false})
		return
	}

	event, err := h.verifier.Verify(payload, signature)
	if err != nil {
		status = http.StatusBadRequest
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.logger.Warn("Webhook signature verification failed", "error", err, "remote_addr", r.RemoteAddr)
			writeError(w, status, "Bad signature")
			return
		}
		h.logger.Error("Webhook payload could not be decoded", err, "remote_addr", r.RemoteAddr)
		writeError(w, status, "Invalid payload")
		return
	}
	eventType = event.Type

	if err := h.reconciler.HandleEvent(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDatastoreNotConfigured) {
			h.logger.Warn("Datastore unavailable, skipping webhook persistence", "event_id", event.ID, "type", event.Type)
			writeJSON(w, status, map[string]interface{}{"received": true, "skipped": "datastore-disabled"})
			return
		}
		h.logger.Error("Webhook processing failed", err, "event_id", event.ID, "type", event.Type)
		status = http.StatusInternalServerError
		writeError(w, status, "Webhook error")
		return
	}

	writeJSON(w, status, map[string]interface{}{"received": true})
}
