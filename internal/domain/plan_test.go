package domain

import (
	"testing"
	"time"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{"pro", PlanPro},
		{" LEGENDARY ", PlanLegendary},
		{"free", PlanFree},
		{"", PlanFree},
		{"enterprise", PlanFree},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Errorf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePriceKey(t *testing.T) {
	tests := []struct {
		key      string
		plan     Plan
		interval Interval
		ok       bool
	}{
		{"pro_month", PlanPro, IntervalMonth, true},
		{"legendary_year", PlanLegendary, IntervalYear, true},
		{"free_month", "", "", false},
		{"pro_week", "", "", false},
		{"_month", "", "", false},
		{"promonth", "", "", false},
	}

	for _, tt := range tests {
		plan, interval, ok := ParsePriceKey(tt.key)
		if plan != tt.plan || interval != tt.interval || ok != tt.ok {
			t.Errorf("ParsePriceKey(%q) = (%q, %q, %v)", tt.key, plan, interval, ok)
		}
	}

	for _, plan := range PaidPlans {
		for _, interval := range Intervals {
			p, i, ok := ParsePriceKey(PriceKey(plan, interval))
			if !ok || p != plan || i != interval {
				t.Errorf("PriceKey(%s, %s) did not parse back", plan, interval)
			}
		}
	}
}

func TestPlanMeets(t *testing.T) {
	if !PlanLegendary.Meets(PlanPro) || !PlanPro.Meets(PlanPro) || !PlanFree.Meets(PlanFree) {
		t.Fatalf("expected higher or equal tiers to meet the requirement")
	}
	if PlanPro.Meets(PlanLegendary) || PlanFree.Meets(PlanPro) {
		t.Fatalf("expected lower tiers not to meet the requirement")
	}
}

func TestPlanInfo_EffectivePlan(t *testing.T) {
	tests := []struct {
		info PlanInfo
		want Plan
	}{
		{PlanInfo{Plan: PlanPro, Status: "active"}, PlanPro},
		{PlanInfo{Plan: PlanLegendary, Status: "trialing"}, PlanLegendary},
		{PlanInfo{Plan: PlanPro, Status: "past_due"}, PlanPro},
		{PlanInfo{Plan: PlanPro, Status: "canceled"}, PlanFree},
		{PlanInfo{Plan: PlanLegendary, Status: "incomplete_expired"}, PlanFree},
		{DefaultPlanInfo(), PlanFree},
	}

	for _, tt := range tests {
		if got := tt.info.EffectivePlan(); got != tt.want {
			t.Errorf("%+v: got %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestFeatureRegistry(t *testing.T) {
	notes, ok := LookupFeature(FeatureNotes)
	if !ok {
		t.Fatalf("notes feature missing")
	}
	if got := notes.Cooldown.DurationFor(PlanFree); got != 24*time.Hour {
		t.Errorf("free notes cooldown = %s", got)
	}
	if got := notes.Cooldown.DurationFor(PlanPro); got != 0 {
		t.Errorf("pro notes cooldown = %s", got)
	}

	subjects, _ := LookupFeature(FeatureSubjectLines)
	if got := subjects.Cooldown.DurationFor(PlanLegendary); got != 30*time.Second {
		t.Errorf("legendary subject cooldown = %s", got)
	}

	images, _ := LookupFeature(FeatureViralImages)
	if got := images.Cooldown.DurationFor(PlanPro); got != 48*time.Hour {
		t.Errorf("pro image cooldown = %s", got)
	}

	edit, _ := LookupFeature(FeatureImageEdit)
	if edit.HasCooldown() || edit.MinPlan != PlanLegendary {
		t.Errorf("unexpected image edit rules: %+v", edit)
	}

	if _, ok := LookupFeature("unknown"); ok {
		t.Errorf("unknown feature should not resolve")
	}
}

func TestCooldownColumns(t *testing.T) {
	cols := CooldownColumns()
	want := map[string]bool{"notes_last_run_at": true, "subject_last_run_at": true, "images_last_run_at": true}
	if len(cols) != len(want) {
		t.Fatalf("unexpected columns: %v", cols)
	}
	for _, c := range cols {
		if !want[c] {
			t.Errorf("unexpected column %q", c)
		}
	}
}
