package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"plan-gate-server/internal/domain"
)

// PlanReader resolves the caller's plan.
type PlanReader interface {
	ResolvePlan(ctx context.Context, userID string) domain.PlanInfo
}

// CheckoutStarter starts hosted checkouts.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, user *domain.SupabaseUser, plan, interval string) (string, error)
}

// PortalOpener opens the billing portal.
type PortalOpener interface {
	OpenPortal(ctx context.Context, user *domain.SupabaseUser) (string, error)
}

// BillingHandler serves plan lookup, checkout and portal redirects
type BillingHandler struct {
	responder
	plans    PlanReader
	checkout CheckoutStarter
	portal   PortalOpener
}

// NewBillingHandler creates a billing handler. upgradeURL is returned with
// plan denials.
func NewBillingHandler(plans PlanReader, checkout CheckoutStarter, portal PortalOpener, upgradeURL string, logger domain.Logger) *BillingHandler {
	return &BillingHandler{
		responder: responder{upgradeURL: upgradeURL, logger: logger},
		plans:     plans,
		checkout:  checkout,
		portal:    portal,
	}
}

type planResponse struct {
	Plan          domain.Plan      `json:"plan"`
	EffectivePlan domain.Plan      `json:"effective_plan"`
	Interval      *domain.Interval `json:"interval"`
	Status        string           `json:"status"`
}

// GetPlan returns the caller's resolved plan
func (h *BillingHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	info := h.plans.ResolvePlan(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, planResponse{
		Plan:          info.Plan,
		EffectivePlan: info.EffectivePlan(),
		Interval:      info.Interval,
		Status:        info.Status,
	})
}

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

// StartCheckout creates a checkout session and returns its URL
func (h *BillingHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := h.checkout.StartCheckout(r.Context(), user, req.Plan, req.Interval)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// OpenPortal returns a billing portal URL
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	url, err := h.portal.OpenPortal(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
