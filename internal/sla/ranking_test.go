package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func ticketWithBudget(id string, createdAt time.Time, resolutionMinutes int) domain.Ticket {
	return domain.Ticket{
		ID:        id,
		State:     domain.TicketStateInProgress,
		Policy:    &domain.SLAPolicy{ResponseMinutes: 60, ResolutionMinutes: resolutionMinutes},
		CreatedAt: createdAt,
	}
}

func TestRankOrdersBySeverity(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime.Add(10 * time.Hour)

	onTrack := ticketWithBudget("t-ontrack", baseTime, 10*24*60)
	breached := ticketWithBudget("t-breached", baseTime, 60)
	atRisk := ticketWithBudget("t-atrisk", baseTime, 16*60)

	ranked := ev.Rank([]domain.Ticket{onTrack, breached, atRisk}, now)

	require.Len(t, ranked, 3)
	assert.Equal(t, "t-breached", ranked[0].ID)
	assert.Equal(t, "t-atrisk", ranked[1].ID)
	assert.Equal(t, "t-ontrack", ranked[2].ID)
}

func TestRankDeadlineTieBreak(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime

	// Both breached; the one that breached first (earlier deadline) leads.
	older := ticketWithBudget("t-older", baseTime.Add(-5*time.Hour), 60)
	newer := ticketWithBudget("t-newer", baseTime.Add(-2*time.Hour), 60)

	ranked := ev.Rank([]domain.Ticket{newer, older}, now)
	assert.Equal(t, "t-older", ranked[0].ID)
	assert.Equal(t, "t-newer", ranked[1].ID)
}

func TestRankNoDeadlineSortsLastWithinBucket(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime

	noPolicy := domain.Ticket{ID: "t-nopolicy", State: domain.TicketStateNew, CreatedAt: baseTime}
	breached := ticketWithBudget("t-breached", baseTime.Add(-3*time.Hour), 60)

	ranked := ev.Rank([]domain.Ticket{noPolicy, breached}, now)
	assert.Equal(t, "t-breached", ranked[0].ID)
	assert.Equal(t, "t-nopolicy", ranked[1].ID)
}

func TestRankIDTieBreakAndStability(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime

	a := ticketWithBudget("t-a", baseTime.Add(-2*time.Hour), 60)
	b := ticketWithBudget("t-b", baseTime.Add(-2*time.Hour), 60)
	c := ticketWithBudget("t-c", baseTime.Add(-2*time.Hour), 60)

	ranked := ev.Rank([]domain.Ticket{c, a, b}, now)
	assert.Equal(t, []string{"t-a", "t-b", "t-c"}, ticketIDs(ranked))
}

func TestRankIdempotent(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime.Add(10 * time.Hour)

	tickets := []domain.Ticket{
		ticketWithBudget("t-1", baseTime, 10*24*60),
		ticketWithBudget("t-2", baseTime, 60),
		ticketWithBudget("t-3", baseTime, 16*60),
		{ID: "t-4", State: domain.TicketStateNew, CreatedAt: baseTime},
	}

	once := ev.Rank(tickets, now)
	twice := ev.Rank(once, now)
	assert.Equal(t, ticketIDs(once), ticketIDs(twice))
}

func TestRankDoesNotMutateInput(t *testing.T) {
	ev := NewEvaluator(1440)
	now := baseTime.Add(10 * time.Hour)

	tickets := []domain.Ticket{
		ticketWithBudget("t-ontrack", baseTime, 10*24*60),
		ticketWithBudget("t-breached", baseTime, 60),
	}
	ev.Rank(tickets, now)
	assert.Equal(t, []string{"t-ontrack", "t-breached"}, ticketIDs(tickets))
}

func ticketIDs(tickets []domain.Ticket) []string {
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	return ids
}
