package domain

// Detail source identifiers reported in TicketDetail.PartialFailures.
const (
	DetailSourceMessages    = "messages"
	DetailSourceAttachments = "attachments"
	DetailSourceHistory     = "history"
)

// TicketDetail is the ephemeral aggregate view of a ticket and its
// sub-resources. Rebuilt on every request, never persisted. PartialFailures
// names the non-critical sources that could not be loaded so callers can
// render a degraded view.
type TicketDetail struct {
	Ticket          Ticket
	SLA             SLAStatus
	Messages        []TicketMessage
	Attachments     []AttachmentReference
	History         []TransitionEvent
	PartialFailures []string
}

// Degraded reports whether any non-critical source failed to load.
func (d *TicketDetail) Degraded() bool {
	return len(d.PartialFailures) > 0
}
