package sla

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// DefaultAtRiskWindowMinutes is the warning window before breach (24h).
const DefaultAtRiskWindowMinutes = 1440

// Evaluator computes live SLA status. Evaluate is a pure function of its
// inputs and is safe to call on every poll tick.
type Evaluator struct {
	atRiskWindowMinutes int64
}

// NewEvaluator constructs an evaluator. A non-positive window falls back to
// the 24h default.
func NewEvaluator(atRiskWindowMinutes int) *Evaluator {
	if atRiskWindowMinutes <= 0 {
		atRiskWindowMinutes = DefaultAtRiskWindowMinutes
	}
	return &Evaluator{atRiskWindowMinutes: int64(atRiskWindowMinutes)}
}

// Evaluate classifies a ticket against its resolution deadline.
//
// A resolved ticket always reports ON_TRACK: breach signaling exists to drive
// action on live tickets, not to score history. Minutes remaining use ceiling
// arithmetic over epoch milliseconds so a ticket with one second left still
// reports at least one minute.
func (e *Evaluator) Evaluate(createdAt time.Time, resolvedAt *time.Time, policy *domain.SLAPolicy, now time.Time) domain.SLAStatus {
	if policy == nil || policy.ResolutionMinutes <= 0 {
		return domain.SLAStatus{State: domain.SLANotApplicable}
	}

	deadline := createdAt.Add(time.Duration(policy.ResolutionMinutes) * time.Minute)

	if resolvedAt != nil {
		return domain.SLAStatus{State: domain.SLAOnTrack, Deadline: &deadline}
	}

	remaining := ceilMinutes(deadline.UnixMilli() - now.UnixMilli())
	status := domain.SLAStatus{Deadline: &deadline, MinutesRemaining: &remaining}
	switch {
	case remaining <= 0:
		status.State = domain.SLABreached
	case remaining <= e.atRiskWindowMinutes:
		status.State = domain.SLAAtRisk
	default:
		status.State = domain.SLAOnTrack
	}
	return status
}

// EvaluateTicket applies Evaluate to a ticket's snapshot fields.
func (e *Evaluator) EvaluateTicket(ticket *domain.Ticket, now time.Time) domain.SLAStatus {
	return e.Evaluate(ticket.CreatedAt, ticket.ResolvedAt, ticket.Policy, now)
}

const millisPerMinute = 60_000

func ceilMinutes(millis int64) int64 {
	if millis >= 0 {
		return (millis + millisPerMinute - 1) / millisPerMinute
	}
	// Past-deadline values floor toward zero; the exact magnitude only
	// feeds "overdue by" displays.
	return millis / millisPerMinute
}
