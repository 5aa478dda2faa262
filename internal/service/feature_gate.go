package service

import (
	"context"
	"fmt"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/metrics"
)

// FeatureGate combines the plan tier check with the feature's cooldown.
type FeatureGate struct {
	plans     PlanSource
	cooldowns *CooldownGate
	logger    domain.Logger
}

func NewFeatureGate(plans PlanSource, cooldowns *CooldownGate, logger domain.Logger) *FeatureGate {
	return &FeatureGate{plans: plans, cooldowns: cooldowns, logger: logger}
}

// Authorize admits one run of the feature. Denials are returned as
// *domain.PlanInsufficientError or *domain.CooldownActiveError. An admitted
// cooldown feature has already been stamped.
func (g *FeatureGate) Authorize(ctx context.Context, userID string, key domain.FeatureKey) (CooldownDecision, error) {
	feature, ok := domain.LookupFeature(key)
	if !ok {
		return CooldownDecision{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, key)
	}

	plan := g.plans.ResolvePlan(ctx, userID).EffectivePlan()
	if !plan.Meets(feature.MinPlan) {
		metrics.GateDecisionsTotal.WithLabelValues(string(key), "plan_insufficient").Inc()
		return CooldownDecision{}, &domain.PlanInsufficientError{
			Feature:  key,
			Required: feature.MinPlan,
			Current:  plan,
			Message:  feature.UpgradeText(),
		}
	}

	d, err := g.cooldowns.checkAndStamp(ctx, userID, feature, plan)
	if err != nil {
		metrics.GateDecisionsTotal.WithLabelValues(string(key), "error").Inc()
		return CooldownDecision{}, err
	}
	if !d.Allowed {
		metrics.GateDecisionsTotal.WithLabelValues(string(key), "cooldown").Inc()
		return d, &domain.CooldownActiveError{
			Feature:   key,
			RetryAt:   d.RetryAt,
			Remaining: d.Remaining,
			Message:   fmt.Sprintf("Please wait %s before %s.", FormatRemaining(d.Remaining), feature.Action),
		}
	}

	metrics.GateDecisionsTotal.WithLabelValues(string(key), "allowed").Inc()
	return d, nil
}
