// Package lifecycle implements the ticket state machine. Apply is a pure
// function: callers own persistence (with optimistic concurrency) and the
// delivery of the emitted transition event.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Event identifies a lifecycle trigger.
type Event string

const (
	EventAssign          Event = "assign"
	EventStartWork       Event = "startWork"
	EventAwaitCustomer   Event = "awaitCustomer"
	EventCustomerReplied Event = "customerReplied"
	EventAwaitTech       Event = "awaitTech"
	EventTechReplied     Event = "techReplied"
	EventResolve         Event = "resolve"
	EventClose           Event = "close"
	EventReopen          Event = "reopen"
)

// Payload carries per-transition inputs. Reason is mandatory for reopen.
type Payload struct {
	ActorID string
	Reason  string
}

// InvalidTransitionError reports a trigger that is not legal from the
// ticket's current state.
type InvalidTransitionError struct {
	Event Event
	From  domain.TicketState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q not allowed from state %q", e.Event, e.From)
}

// transitions maps current state and event to the target state. There is no
// terminal state: closed tickets stay reopenable indefinitely.
var transitions = map[domain.TicketState]map[Event]domain.TicketState{
	domain.TicketStateNew: {
		EventAssign:    domain.TicketStateInProgress,
		EventStartWork: domain.TicketStateInProgress,
		EventResolve:   domain.TicketStateResolved,
	},
	domain.TicketStateInProgress: {
		EventAwaitCustomer: domain.TicketStatePendingCustomer,
		EventAwaitTech:     domain.TicketStatePendingTech,
		EventResolve:       domain.TicketStateResolved,
	},
	domain.TicketStatePendingCustomer: {
		EventCustomerReplied: domain.TicketStateInProgress,
		EventResolve:         domain.TicketStateResolved,
	},
	domain.TicketStatePendingTech: {
		EventTechReplied: domain.TicketStateInProgress,
		EventResolve:     domain.TicketStateResolved,
	},
	domain.TicketStateResolved: {
		EventClose:  domain.TicketStateClosed,
		EventReopen: domain.TicketStateReopened,
	},
	domain.TicketStateClosed: {
		EventReopen: domain.TicketStateReopened,
	},
	domain.TicketStateReopened: {
		EventStartWork: domain.TicketStateInProgress,
	},
}

// Apply validates the event against the ticket's current state and returns
// the updated ticket plus the transition event to emit. The input ticket is
// not modified. On rejection the returned error is an
// *InvalidTransitionError and the ticket is returned unchanged.
func Apply(ticket domain.Ticket, event Event, payload Payload, now time.Time) (domain.Ticket, domain.TransitionEvent, error) {
	target, ok := transitions[ticket.State][event]
	if !ok {
		return ticket, domain.TransitionEvent{}, &InvalidTransitionError{Event: event, From: ticket.State}
	}
	if event == EventReopen && strings.TrimSpace(payload.Reason) == "" {
		return ticket, domain.TransitionEvent{}, &InvalidTransitionError{Event: event, From: ticket.State}
	}

	from := ticket.State
	ticket.State = target
	ticket.UpdatedAt = now

	switch event {
	case EventResolve:
		resolvedAt := now
		ticket.ResolvedAt = &resolvedAt
	case EventClose:
		closedAt := now
		ticket.ClosedAt = &closedAt
	case EventReopen:
		reopenedAt := now
		ticket.ReopenCount++
		ticket.LastReopenedAt = &reopenedAt
		ticket.ResolvedAt = nil
		ticket.ClosedAt = nil
	}

	transition := domain.TransitionEvent{
		TicketID:   ticket.ID,
		From:       from,
		To:         target,
		Event:      string(event),
		ActorID:    payload.ActorID,
		Reason:     strings.TrimSpace(payload.Reason),
		OccurredAt: now,
	}
	return ticket, transition, nil
}

// Allowed returns the events legal from the given state, for capability
// checks and API affordances. Order is unspecified.
func Allowed(state domain.TicketState) []Event {
	events := make([]Event, 0, len(transitions[state]))
	for event := range transitions[state] {
		events = append(events, event)
	}
	return events
}
