package domain

import (
	"sort"
	"time"
)

// FeatureKey identifies a gated feature.
type FeatureKey string

const (
	FeatureNotes         FeatureKey = "notes"
	FeatureSubjectLines  FeatureKey = "subject_lines"
	FeatureViralImages   FeatureKey = "viral_images"
	FeatureImageGen      FeatureKey = "image_gen"
	FeatureImageEdit     FeatureKey = "image_edit"
	FeatureProDemo       FeatureKey = "pro_demo"
	FeatureLegendaryDemo FeatureKey = "legendary_demo"
)

const defaultUpgradeMessage = "Please upgrade your plan to use this feature."

// CooldownPolicy maps a plan to the minimum wait between runs. Zero means
// no cooldown.
type CooldownPolicy map[Plan]time.Duration

// DurationFor returns the plan's duration, falling back to the free tier.
func (p CooldownPolicy) DurationFor(plan Plan) time.Duration {
	if d, ok := p[plan]; ok {
		return d
	}
	return p[PlanFree]
}

// Feature describes the access rules of one gated feature.
type Feature struct {
	Key     FeatureKey
	MinPlan Plan
	// Cooldown is nil for features without a rate limit.
	Cooldown CooldownPolicy
	// Column is the profile column holding the last run timestamp.
	Column string
	// Action completes "Please wait 2h before ...".
	Action         string
	UpgradeMessage string
}

// HasCooldown reports whether the feature is rate limited.
func (f Feature) HasCooldown() bool {
	return len(f.Cooldown) > 0 && f.Column != ""
}

// UpgradeText returns the prompt shown when the plan is too low.
func (f Feature) UpgradeText() string {
	if f.UpgradeMessage != "" {
		return f.UpgradeMessage
	}
	return defaultUpgradeMessage
}

var featureRegistry = map[FeatureKey]Feature{
	FeatureNotes: {
		Key:     FeatureNotes,
		MinPlan: PlanFree,
		Cooldown: CooldownPolicy{
			PlanFree:      24 * time.Hour,
			PlanPro:       0,
			PlanLegendary: 0,
		},
		Column: "notes_last_run_at",
		Action: "generating new notes",
	},
	FeatureSubjectLines: {
		Key:     FeatureSubjectLines,
		MinPlan: PlanFree,
		Cooldown: CooldownPolicy{
			PlanFree:      3 * time.Hour,
			PlanPro:       3 * time.Minute,
			PlanLegendary: 30 * time.Second,
		},
		Column: "subject_last_run_at",
		Action: "generating new subject lines",
	},
	FeatureViralImages: {
		Key:     FeatureViralImages,
		MinPlan: PlanFree,
		Cooldown: CooldownPolicy{
			PlanFree:      7 * 24 * time.Hour,
			PlanPro:       48 * time.Hour,
			PlanLegendary: 0,
		},
		Column: "images_last_run_at",
		Action: "generating new viral images",
	},
	FeatureImageGen: {
		Key:     FeatureImageGen,
		MinPlan: PlanPro,
	},
	FeatureImageEdit: {
		Key:            FeatureImageEdit,
		MinPlan:        PlanLegendary,
		UpgradeMessage: "Image editor is available only to LEGENDARY subscribers.",
	},
	FeatureProDemo: {
		Key:            FeatureProDemo,
		MinPlan:        PlanPro,
		UpgradeMessage: "Requires PRO plan",
	},
	FeatureLegendaryDemo: {
		Key:            FeatureLegendaryDemo,
		MinPlan:        PlanLegendary,
		UpgradeMessage: "Requires LEGENDARY plan",
	},
}

// LookupFeature returns the registered feature for key.
func LookupFeature(key FeatureKey) (Feature, bool) {
	f, ok := featureRegistry[key]
	return f, ok
}

// Features returns every registered feature ordered by key.
func Features() []Feature {
	out := make([]Feature, 0, len(featureRegistry))
	for _, f := range featureRegistry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CooldownColumns returns the profile columns used by rate-limited features.
func CooldownColumns() []string {
	var cols []string
	for _, f := range Features() {
		if f.HasCooldown() {
			cols = append(cols, f.Column)
		}
	}
	return cols
}
