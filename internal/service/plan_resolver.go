package service

import (
	"context"

	"plan-gate-server/internal/domain"
)

// PlanSource resolves a user's current plan.
type PlanSource interface {
	ResolvePlan(ctx context.Context, userID string) domain.PlanInfo
}

// PlanResolver reads the newest ledger row for a user.
type PlanResolver struct {
	subscriptions domain.SubscriptionRepository
	logger        domain.Logger
}

func NewPlanResolver(subscriptions domain.SubscriptionRepository, logger domain.Logger) *PlanResolver {
	return &PlanResolver{subscriptions: subscriptions, logger: logger}
}

// ResolvePlan never fails: missing rows and datastore errors degrade to
// the free tier.
func (r *PlanResolver) ResolvePlan(ctx context.Context, userID string) domain.PlanInfo {
	if userID == "" {
		return domain.DefaultPlanInfo()
	}

	sub, err := r.subscriptions.LatestForUser(ctx, userID)
	if err != nil {
		r.logger.Warn("Plan resolution failed, defaulting to free", "user_id", userID, "error", err)
		return domain.DefaultPlanInfo()
	}
	if sub == nil {
		return domain.DefaultPlanInfo()
	}

	info := domain.PlanInfo{
		Plan:   domain.NormalizePlan(string(sub.Plan)),
		Status: sub.Status,
	}
	if info.Status == "" {
		info.Status = domain.StatusInactive
	}
	if sub.Interval != "" {
		interval := sub.Interval
		info.Interval = &interval
	}
	return info
}
