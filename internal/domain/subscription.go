package domain

import "time"

// StatusInactive is reported when a user has no subscription row.
const StatusInactive = "inactive"

// Subscription is a ledger row keyed by the provider subscription id.
type Subscription struct {
	ID         string
	UserID     string
	CustomerID string
	Plan       Plan
	Interval   Interval
	// Status is passed through verbatim from the billing provider.
	Status    string
	CreatedAt time.Time
}

// PlanInfo is the resolved plan state for a user.
type PlanInfo struct {
	Plan     Plan      `json:"plan"`
	Interval *Interval `json:"interval"`
	Status   string    `json:"status"`
}

// DefaultPlanInfo is the most restrictive state, used when nothing is known.
func DefaultPlanInfo() PlanInfo {
	return PlanInfo{Plan: PlanFree, Status: StatusInactive}
}

// EffectivePlan returns the tier the user is currently entitled to. A paid
// plan only counts while its status grants access.
func (p PlanInfo) EffectivePlan() Plan {
	if p.Plan == PlanFree || !StatusGrantsAccess(p.Status) {
		return PlanFree
	}
	return p.Plan
}

// StatusGrantsAccess reports whether a provider subscription status keeps
// paid features enabled.
func StatusGrantsAccess(status string) bool {
	switch status {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
