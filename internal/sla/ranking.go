package sla

import (
	"sort"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

var severityRank = map[domain.SLAState]int{
	domain.SLABreached:      0,
	domain.SLAAtRisk:        1,
	domain.SLAOnTrack:       2,
	domain.SLANotApplicable: 3,
}

// Rank orders tickets for operator triage: breached first, then at-risk, then
// on-track, then not-applicable; within a bucket the nearest deadline wins,
// tickets without a deadline sort last, and ticket ID is the final tie-break
// so pagination stays stable. The input slice is not modified.
func (e *Evaluator) Rank(tickets []domain.Ticket, now time.Time) []domain.Ticket {
	items := make([]rankedTicket, len(tickets))
	for i := range tickets {
		items[i] = rankedTicket{
			ticket: tickets[i],
			key:    newRankKey(e.EvaluateTicket(&tickets[i], now)),
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].key.less(items[j].key, items[i].ticket.ID, items[j].ticket.ID)
	})

	ranked := make([]domain.Ticket, len(items))
	for i := range items {
		ranked[i] = items[i].ticket
	}
	return ranked
}

type rankedTicket struct {
	ticket domain.Ticket
	key    rankKey
}

type rankKey struct {
	severity    int
	hasDeadline bool
	deadline    time.Time
}

func newRankKey(status domain.SLAStatus) rankKey {
	key := rankKey{severity: severityRank[status.State]}
	if status.Deadline != nil {
		key.hasDeadline = true
		key.deadline = *status.Deadline
	}
	return key
}

func (k rankKey) less(other rankKey, id, otherID string) bool {
	if k.severity != other.severity {
		return k.severity < other.severity
	}
	if k.hasDeadline != other.hasDeadline {
		return k.hasDeadline
	}
	if k.hasDeadline && !k.deadline.Equal(other.deadline) {
		return k.deadline.Before(other.deadline)
	}
	return id < otherID
}
