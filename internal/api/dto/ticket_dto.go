package dto

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	PriorityID  string `json:"priority_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TransitionRequest triggers a lifecycle event.
type TransitionRequest struct {
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

// AssignRequest sets the ticket assignee.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// SLAStatusResponse reports the live evaluation.
type SLAStatusResponse struct {
	State            domain.SLAState `json:"state"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	MinutesRemaining *int64          `json:"minutes_remaining,omitempty"`
}

// PrioritySnapshot echoes the priority captured at creation.
type PrioritySnapshot struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Level int    `json:"level"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string             `json:"id"`
	ExternalKey string             `json:"external_key"`
	Title       string             `json:"title"`
	State       domain.TicketState `json:"state"`
	Priority    PrioritySnapshot   `json:"priority"`
	AssigneeID  *string            `json:"assignee_id,omitempty"`
	ReopenCount int                `json:"reopen_count"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	SLA         *SLAStatusResponse `json:"sla,omitempty"`
}

// TicketDetailResponse provides the aggregated view. PartialFailures names
// the sections that could not be loaded so clients can flag a degraded view.
type TicketDetailResponse struct {
	TicketSummary
	Description     string                    `json:"description"`
	Messages        []TicketMessageResponse   `json:"messages"`
	Attachments     []AttachmentResponse      `json:"attachments"`
	History         []TransitionEventResponse `json:"history"`
	PartialFailures []string                  `json:"partial_failures,omitempty"`
	Degraded        bool                      `json:"degraded"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string                   `json:"id"`
	MessageType domain.TicketMessageType `json:"message_type"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id"`
	Body        string                   `json:"body"`
	CreatedAt   time.Time                `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TransitionEventResponse is one audit trail entry.
type TransitionEventResponse struct {
	ID         string             `json:"id"`
	From       domain.TicketState `json:"from"`
	To         domain.TicketState `json:"to"`
	Event      string             `json:"event"`
	ActorID    string             `json:"actor_id"`
	Reason     string             `json:"reason,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body        string                    `json:"body"`
	MessageType *domain.TicketMessageType `json:"message_type,omitempty"`
	Attachments []AttachmentRequest       `json:"attachments"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// CreatePriorityRequest payload.
type CreatePriorityRequest struct {
	Name              string `json:"name"`
	Level             int    `json:"level"`
	ResponseMinutes   int    `json:"response_minutes"`
	ResolutionMinutes int    `json:"resolution_minutes"`
}

// PriorityResponse payload.
type PriorityResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Level             int       `json:"level"`
	ResponseMinutes   int       `json:"response_minutes"`
	ResolutionMinutes int       `json:"resolution_minutes"`
	CreatedAt         time.Time `json:"created_at"`
}
