package events

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventTicketMessageAdded EventType = "ticket_message_added"
	EventTicketDeadlineRisk EventType = "ticket_deadline_risk"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey       string     `json:"external_key"`
	PriorityLevel     int        `json:"priority_level"`
	ResolutionMinutes int        `json:"resolution_minutes"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	Title             string     `json:"title"`
}

// TicketTransitionedPayload carries the audit record for a state change.
type TicketTransitionedPayload struct {
	Transition  domain.TransitionEvent `json:"transition"`
	ReopenCount int                    `json:"reopen_count"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string                   `json:"message_id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// TicketDeadlineRiskPayload signals that a live ticket moved into the at-risk
// window or past its deadline.
type TicketDeadlineRiskPayload struct {
	State            domain.SLAState `json:"state"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	MinutesRemaining *int64          `json:"minutes_remaining,omitempty"`
}
