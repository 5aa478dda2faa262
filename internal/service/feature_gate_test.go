package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-gate-server/internal/domain"
)

func newTestFeatureGate(plans staticPlans) (*FeatureGate, *fakeProfiles, *testClock) {
	cooldowns, profiles, clock := newTestGate(plans)
	return NewFeatureGate(plans, cooldowns, NewMockLogger()), profiles, clock
}

func TestFeatureGate_FreeUserDeniedLegendaryFeature(t *testing.T) {
	gate, profiles, _ := newTestFeatureGate(nil)
	profiles.add("user-1", "")

	_, err := gate.Authorize(context.Background(), "user-1", domain.FeatureImageEdit)

	var denied *domain.PlanInsufficientError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, domain.PlanLegendary, denied.Required)
	assert.Equal(t, domain.PlanFree, denied.Current)
	assert.Equal(t, "Image editor is available only to LEGENDARY subscribers.", denied.Message)
	assert.Zero(t, profiles.stampCalls)
}

func TestFeatureGate_ProMeetsProButNotLegendary(t *testing.T) {
	gate, _, _ := newTestFeatureGate(staticPlans{"user-1": activePlan(domain.PlanPro)})
	ctx := context.Background()

	_, err := gate.Authorize(ctx, "user-1", domain.FeatureProDemo)
	assert.NoError(t, err)

	_, err = gate.Authorize(ctx, "user-1", domain.FeatureLegendaryDemo)
	var denied *domain.PlanInsufficientError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "Requires LEGENDARY plan", denied.Message)
}

func TestFeatureGate_CooldownDenialMessage(t *testing.T) {
	gate, profiles, clock := newTestFeatureGate(nil)
	last := gateEpoch
	profiles.add("user-1", "").stamps["subject_last_run_at"] = &last
	clock.now = last.Add(time.Minute)

	_, err := gate.Authorize(context.Background(), "user-1", domain.FeatureSubjectLines)

	var cooling *domain.CooldownActiveError
	require.True(t, errors.As(err, &cooling))
	assert.Equal(t, "Please wait 2h 59m before generating new subject lines.", cooling.Message)
	assert.True(t, cooling.RetryAt.Equal(last.Add(3*time.Hour)))
	assert.Equal(t, 179*time.Minute, cooling.Remaining)
}

func TestFeatureGate_AllowedRunIsStamped(t *testing.T) {
	gate, profiles, _ := newTestFeatureGate(nil)
	profiles.add("user-1", "")

	d, err := gate.Authorize(context.Background(), "user-1", domain.FeatureNotes)

	require.NoError(t, err)
	assert.True(t, d.Stamped)
	assert.Equal(t, 1, profiles.stampCalls)
}

func TestFeatureGate_UnknownFeature(t *testing.T) {
	gate, _, _ := newTestFeatureGate(nil)

	_, err := gate.Authorize(context.Background(), "user-1", "teleport")

	assert.ErrorIs(t, err, domain.ErrUnknownFeature)
}
