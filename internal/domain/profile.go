package domain

import "time"

// PlanMirror is the denormalized plan state copied onto a profile row.
type PlanMirror struct {
	CustomerID string
	Plan       Plan
	Status     string
	Interval   Interval
	UpdatedAt  time.Time
}
