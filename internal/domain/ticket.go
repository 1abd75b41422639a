package domain

import "time"

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateNew             TicketState = "NEW"
	TicketStateInProgress      TicketState = "IN_PROGRESS"
	TicketStatePendingCustomer TicketState = "PENDING_CUSTOMER"
	TicketStatePendingTech     TicketState = "PENDING_TECH"
	TicketStateResolved        TicketState = "RESOLVED"
	TicketStateClosed          TicketState = "CLOSED"
	TicketStateReopened        TicketState = "REOPENED"
)

// Ticket is the aggregate for support requests. Policy is the SLA snapshot
// taken from the priority at creation time; it is never re-derived, even if
// the priority record changes later.
type Ticket struct {
	ID             string
	ExternalKey    string
	RequesterID    string
	AssigneeID     *string
	Title          string
	Description    string
	State          TicketState
	Priority       Priority
	Policy         *SLAPolicy
	ReopenCount    int
	LastReopenedAt *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
