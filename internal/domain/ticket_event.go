package domain

import "time"

// TransitionEvent is the immutable audit record produced by every successful
// lifecycle transition. The core emits it; persistence and broadcast belong
// to external sinks.
type TransitionEvent struct {
	ID         string
	TicketID   string
	From       TicketState
	To         TicketState
	Event      string
	ActorID    string
	Reason     string
	OccurredAt time.Time
}
