package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plan-gate-server/internal/domain"
)

// CooldownDecision is the outcome of a cooldown check.
type CooldownDecision struct {
	Feature  domain.FeatureKey
	Plan     domain.Plan
	Allowed  bool
	Duration time.Duration
	// LastRunAt is the stamp the decision was based on, if any.
	LastRunAt *time.Time
	// RetryAt and Remaining are set only on denial.
	RetryAt   time.Time
	Remaining time.Duration
	// Stamped is true when this call claimed the window.
	Stamped bool
}

// CooldownGate enforces per-feature minimum intervals between runs using
// timestamps on the profile row. Clients may mirror the window but the
// stored stamp is authoritative.
type CooldownGate struct {
	plans    PlanSource
	profiles domain.ProfileRepository
	logger   domain.Logger
	now      func() time.Time
}

func NewCooldownGate(plans PlanSource, profiles domain.ProfileRepository, logger domain.Logger) *CooldownGate {
	return &CooldownGate{plans: plans, profiles: profiles, logger: logger, now: time.Now}
}

// CheckAndStamp decides whether the user may run the feature now and, if so,
// records the run before returning.
func (g *CooldownGate) CheckAndStamp(ctx context.Context, userID string, key domain.FeatureKey) (CooldownDecision, error) {
	feature, ok := domain.LookupFeature(key)
	if !ok {
		return CooldownDecision{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, key)
	}
	plan := g.plans.ResolvePlan(ctx, userID).EffectivePlan()
	return g.checkAndStamp(ctx, userID, feature, plan)
}

// Status reports the current decision without stamping.
func (g *CooldownGate) Status(ctx context.Context, userID string, key domain.FeatureKey) (CooldownDecision, error) {
	feature, ok := domain.LookupFeature(key)
	if !ok {
		return CooldownDecision{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeature, key)
	}
	plan := g.plans.ResolvePlan(ctx, userID).EffectivePlan()

	d := CooldownDecision{Feature: feature.Key, Plan: plan, Allowed: true}
	if !feature.HasCooldown() {
		return d, nil
	}
	d.Duration = feature.Cooldown.DurationFor(plan)

	last, _, err := g.profiles.LastRunAt(ctx, userID, feature.Column)
	if err != nil {
		if failOpen(err) {
			return d, nil
		}
		return CooldownDecision{}, fmt.Errorf("read cooldown %s: %w", feature.Column, err)
	}
	evaluateCooldown(&d, last, g.now().UTC())
	return d, nil
}

func (g *CooldownGate) checkAndStamp(ctx context.Context, userID string, feature domain.Feature, plan domain.Plan) (CooldownDecision, error) {
	d := CooldownDecision{Feature: feature.Key, Plan: plan, Allowed: true}
	if !feature.HasCooldown() {
		return d, nil
	}
	d.Duration = feature.Cooldown.DurationFor(plan)
	now := g.now().UTC()

	last, found, err := g.profiles.LastRunAt(ctx, userID, feature.Column)
	if err != nil {
		if failOpen(err) {
			g.logger.Warn("Cooldown storage unavailable, allowing without stamp", "feature", feature.Key, "user_id", userID, "error", err)
			return d, nil
		}
		return CooldownDecision{}, fmt.Errorf("read cooldown %s: %w", feature.Column, err)
	}

	if !evaluateCooldown(&d, last, now) {
		return d, nil
	}
	if !found {
		g.logger.Warn("No profile row, cooldown not recorded", "feature", feature.Key, "user_id", userID)
		return d, nil
	}

	claimed, err := g.profiles.StampLastRun(ctx, userID, feature.Column, last, now)
	switch {
	case err != nil && domain.IsSchemaDrift(err):
		g.logger.Warn("Cooldown column missing, allowing without stamp", "feature", feature.Key, "error", err)
		return d, nil
	case err != nil:
		g.logger.Error("Failed to stamp cooldown", err, "feature", feature.Key, "user_id", userID)
		return d, nil
	case claimed:
		d.Stamped = true
		return d, nil
	}

	// Another request moved the stamp between our read and write.
	latest, _, err := g.profiles.LastRunAt(ctx, userID, feature.Column)
	if err != nil {
		g.logger.Warn("Cooldown re-read failed after lost stamp", "feature", feature.Key, "error", err)
		return d, nil
	}
	evaluateCooldown(&d, latest, now)
	return d, nil
}

// evaluateCooldown fills d and reports whether the run is allowed. The
// window is half-open: exactly last+duration is allowed.
func evaluateCooldown(d *CooldownDecision, last *time.Time, now time.Time) bool {
	d.LastRunAt = last
	d.Allowed = true
	d.RetryAt = time.Time{}
	d.Remaining = 0

	if d.Duration <= 0 || last == nil {
		return true
	}
	retryAt := last.Add(d.Duration)
	if !now.Before(retryAt) {
		return true
	}

	d.Allowed = false
	d.RetryAt = retryAt
	d.Remaining = retryAt.Sub(now)
	return false
}

// failOpen reports read errors that leave the feature unconstrained.
func failOpen(err error) bool {
	return domain.IsSchemaDrift(err) || errors.Is(err, domain.ErrDatastoreNotConfigured)
}
