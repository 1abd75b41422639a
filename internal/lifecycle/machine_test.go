package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

var transitionTime = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTicket(state domain.TicketState) domain.Ticket {
	return domain.Ticket{
		ID:          "tk-1",
		RequesterID: "user-1",
		State:       state,
		CreatedAt:   transitionTime.Add(-2 * time.Hour),
	}
}

func TestApplyLegalTransitions(t *testing.T) {
	tests := []struct {
		from  domain.TicketState
		event Event
		to    domain.TicketState
	}{
		{domain.TicketStateNew, EventAssign, domain.TicketStateInProgress},
		{domain.TicketStateNew, EventStartWork, domain.TicketStateInProgress},
		{domain.TicketStateInProgress, EventAwaitCustomer, domain.TicketStatePendingCustomer},
		{domain.TicketStatePendingCustomer, EventCustomerReplied, domain.TicketStateInProgress},
		{domain.TicketStateInProgress, EventAwaitTech, domain.TicketStatePendingTech},
		{domain.TicketStatePendingTech, EventTechReplied, domain.TicketStateInProgress},
		{domain.TicketStateNew, EventResolve, domain.TicketStateResolved},
		{domain.TicketStateInProgress, EventResolve, domain.TicketStateResolved},
		{domain.TicketStatePendingCustomer, EventResolve, domain.TicketStateResolved},
		{domain.TicketStatePendingTech, EventResolve, domain.TicketStateResolved},
		{domain.TicketStateResolved, EventClose, domain.TicketStateClosed},
		{domain.TicketStateResolved, EventReopen, domain.TicketStateReopened},
		{domain.TicketStateClosed, EventReopen, domain.TicketStateReopened},
		{domain.TicketStateReopened, EventStartWork, domain.TicketStateInProgress},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			payload := Payload{ActorID: "agent-1", Reason: "customer follow-up"}
			updated, event, err := Apply(newTicket(tc.from), tc.event, payload, transitionTime)
			require.NoError(t, err)
			assert.Equal(t, tc.to, updated.State)
			assert.Equal(t, tc.from, event.From)
			assert.Equal(t, tc.to, event.To)
			assert.Equal(t, string(tc.event), event.Event)
			assert.Equal(t, "agent-1", event.ActorID)
			assert.Equal(t, transitionTime, event.OccurredAt)
		})
	}
}

func TestApplyRejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		from  domain.TicketState
		event Event
	}{
		{domain.TicketStateNew, EventClose},
		{domain.TicketStateNew, EventReopen},
		{domain.TicketStateNew, EventAwaitCustomer},
		{domain.TicketStateInProgress, EventStartWork},
		{domain.TicketStateInProgress, EventClose},
		{domain.TicketStatePendingCustomer, EventTechReplied},
		{domain.TicketStateResolved, EventResolve},
		{domain.TicketStateClosed, EventClose},
		{domain.TicketStateReopened, EventResolve},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			original := newTicket(tc.from)
			updated, _, err := Apply(original, tc.event, Payload{ActorID: "agent-1"}, transitionTime)

			var invalid *InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tc.event, invalid.Event)
			assert.Equal(t, tc.from, invalid.From)
			assert.Equal(t, original, updated, "rejected transition must not change the ticket")
		})
	}
}

func TestApplyResolveSetsResolvedAt(t *testing.T) {
	updated, _, err := Apply(newTicket(domain.TicketStateInProgress), EventResolve, Payload{ActorID: "agent-1"}, transitionTime)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, transitionTime, *updated.ResolvedAt)
}

func TestApplyClosePreservesResolvedAt(t *testing.T) {
	ticket := newTicket(domain.TicketStateResolved)
	resolvedAt := transitionTime.Add(-time.Hour)
	ticket.ResolvedAt = &resolvedAt

	updated, _, err := Apply(ticket, EventClose, Payload{ActorID: "user-1"}, transitionTime)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, resolvedAt, *updated.ResolvedAt)
	require.NotNil(t, updated.ClosedAt)
	assert.Equal(t, transitionTime, *updated.ClosedAt)
}

func TestApplyReopenFromClosed(t *testing.T) {
	ticket := newTicket(domain.TicketStateClosed)
	resolvedAt := transitionTime.Add(-3 * time.Hour)
	closedAt := transitionTime.Add(-2 * time.Hour)
	ticket.ResolvedAt = &resolvedAt
	ticket.ClosedAt = &closedAt
	ticket.ReopenCount = 1

	payload := Payload{ActorID: "user-1", Reason: "customer follow-up"}
	updated, event, err := Apply(ticket, EventReopen, payload, transitionTime)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStateReopened, updated.State)
	assert.Equal(t, 2, updated.ReopenCount)
	assert.Nil(t, updated.ResolvedAt)
	assert.Nil(t, updated.ClosedAt)
	require.NotNil(t, updated.LastReopenedAt)
	assert.Equal(t, transitionTime, *updated.LastReopenedAt)
	assert.Equal(t, "customer follow-up", event.Reason)
}

func TestApplyReopenRequiresReason(t *testing.T) {
	for _, reason := range []string{"", "   "} {
		ticket := newTicket(domain.TicketStateResolved)
		_, _, err := Apply(ticket, EventReopen, Payload{ActorID: "user-1", Reason: reason}, transitionTime)

		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, EventReopen, invalid.Event)
	}
}

func TestAllowed(t *testing.T) {
	events := Allowed(domain.TicketStateResolved)
	assert.ElementsMatch(t, []Event{EventClose, EventReopen}, events)

	assert.Empty(t, Allowed(domain.TicketState("UNKNOWN")))
}
