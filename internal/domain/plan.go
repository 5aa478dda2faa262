package domain

import "strings"

// Plan is a subscription tier.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPro       Plan = "pro"
	PlanLegendary Plan = "legendary"
)

// Interval is a billing cadence.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// PaidPlans lists the tiers backed by a catalog price.
var PaidPlans = []Plan{PlanPro, PlanLegendary}

// Intervals lists the supported billing cadences.
var Intervals = []Interval{IntervalMonth, IntervalYear}

// NormalizePlan maps any unrecognized or empty value to PlanFree.
func NormalizePlan(value string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(value))) {
	case PlanPro:
		return PlanPro
	case PlanLegendary:
		return PlanLegendary
	default:
		return PlanFree
	}
}

// ParsePaidPlan accepts only plans that can be purchased.
func ParsePaidPlan(value string) (Plan, bool) {
	switch p := Plan(strings.ToLower(strings.TrimSpace(value))); p {
	case PlanPro, PlanLegendary:
		return p, true
	default:
		return "", false
	}
}

// ParseInterval accepts "month" and "year".
func ParseInterval(value string) (Interval, bool) {
	switch i := Interval(strings.ToLower(strings.TrimSpace(value))); i {
	case IntervalMonth, IntervalYear:
		return i, true
	default:
		return "", false
	}
}

func (p Plan) rank() int {
	switch p {
	case PlanPro:
		return 1
	case PlanLegendary:
		return 2
	default:
		return 0
	}
}

// Meets reports whether p is at least the required tier.
func (p Plan) Meets(required Plan) bool {
	return p.rank() >= required.rank()
}

// Label is the upper-case tier name used in product names and messages.
func (p Plan) Label() string {
	return strings.ToUpper(string(p))
}

// PriceKey builds the catalog key for a plan/interval pair, e.g. "pro_month".
func PriceKey(plan Plan, interval Interval) string {
	return string(plan) + "_" + string(interval)
}

// ParsePriceKey splits a catalog key back into its paid plan and interval.
func ParsePriceKey(key string) (Plan, Interval, bool) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return "", "", false
	}
	plan, ok := ParsePaidPlan(key[:idx])
	if !ok {
		return "", "", false
	}
	interval, ok := ParseInterval(key[idx+1:])
	if !ok {
		return "", "", false
	}
	return plan, interval, true
}

// PlanInterval is a purchasable plan/interval pair.
type PlanInterval struct {
	Plan     Plan
	Interval Interval
}
