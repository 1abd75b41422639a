package domain

import "time"

// Priority defines SLA urgency. Level orders escalation (higher = more
// urgent); the minute budgets feed the SLA policy snapshot at ticket
// creation.
type Priority struct {
	ID                string
	Name              string
	Level             int
	ResponseMinutes   int
	ResolutionMinutes int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SLAPolicy is the response/resolution budget resolved from a priority when a
// ticket is created. Treated as an immutable snapshot afterwards.
type SLAPolicy struct {
	ResponseMinutes   int
	ResolutionMinutes int
}

// SLAState classifies a ticket against its resolution deadline.
type SLAState string

const (
	SLAOnTrack       SLAState = "ON_TRACK"
	SLAAtRisk        SLAState = "AT_RISK"
	SLABreached      SLAState = "BREACHED"
	SLANotApplicable SLAState = "NOT_APPLICABLE"
)

// SLAStatus is the derived, never-persisted evaluation result. Deadline and
// MinutesRemaining are nil when no policy applies.
type SLAStatus struct {
	State            SLAState
	Deadline         *time.Time
	MinutesRemaining *int64
}
