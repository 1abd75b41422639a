// Package aggregate builds the ticket detail view from independent backend
// sources, degrading per-source instead of failing the whole request.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// TicketStore loads the core ticket record. This is the only load-bearing
// source: without it there is no detail view.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

// MessageStore lists the ticket's message thread in ascending chronological
// order.
type MessageStore interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

// AttachmentStore lists the ticket's attachment metadata.
type AttachmentStore interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AttachmentReference, error)
}

// HistoryStore lists the ticket's transition audit trail in ascending
// chronological order.
type HistoryStore interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionEvent, error)
}

// Aggregator fans out the four detail fetches concurrently and settles them
// all before returning; it never fails fast on a non-critical source.
type Aggregator struct {
	tickets      TicketStore
	messages     MessageStore
	attachments  AttachmentStore
	history      HistoryStore
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// Dependencies bundles the aggregator's collaborators.
type Dependencies struct {
	TicketStore     TicketStore
	MessageStore    MessageStore
	AttachmentStore AttachmentStore
	HistoryStore    HistoryStore

	// FetchTimeout bounds each individual fetch; zero means the caller's
	// context is the only bound. A timed-out source counts as failed.
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

// New constructs the aggregator.
func New(deps Dependencies) *Aggregator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		tickets:      deps.TicketStore,
		messages:     deps.MessageStore,
		attachments:  deps.AttachmentStore,
		history:      deps.HistoryStore,
		fetchTimeout: deps.FetchTimeout,
		logger:       logger,
	}
}

// Aggregate loads the ticket and its sub-resources concurrently. A failed
// messages/attachments/history fetch yields an empty section plus an entry in
// PartialFailures; a failed ticket fetch fails the whole call with the store
// error (NotFound included) wrapped for the caller. Message and history order
// is passed through from the stores unchanged.
func (a *Aggregator) Aggregate(ctx context.Context, ticketID string) (*domain.TicketDetail, error) {
	var (
		ticket    *domain.Ticket
		ticketErr error

		messages    []domain.TicketMessage
		messagesErr error

		attachments    []domain.AttachmentReference
		attachmentsErr error

		history    []domain.TransitionEvent
		historyErr error
	)

	// Each goroutine writes only its own result pair, so Wait is the only
	// synchronization needed. Errors are returned as nil to keep the group
	// from cancelling sibling fetches: all four must settle.
	g := new(errgroup.Group)
	g.Go(func() error {
		fetchCtx, cancel := a.fetchContext(ctx)
		defer cancel()
		ticket, ticketErr = a.tickets.GetByID(fetchCtx, ticketID)
		return nil
	})
	g.Go(func() error {
		fetchCtx, cancel := a.fetchContext(ctx)
		defer cancel()
		messages, messagesErr = a.messages.ListByTicket(fetchCtx, ticketID)
		return nil
	})
	g.Go(func() error {
		fetchCtx, cancel := a.fetchContext(ctx)
		defer cancel()
		attachments, attachmentsErr = a.attachments.ListByTicket(fetchCtx, ticketID)
		return nil
	})
	g.Go(func() error {
		fetchCtx, cancel := a.fetchContext(ctx)
		defer cancel()
		history, historyErr = a.history.ListByTicket(fetchCtx, ticketID)
		return nil
	})
	_ = g.Wait()

	if ticketErr != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ticketErr)
	}

	detail := &domain.TicketDetail{
		Ticket:      *ticket,
		Messages:    messages,
		Attachments: attachments,
		History:     history,
	}
	a.recordFailure(detail, domain.DetailSourceMessages, ticketID, messagesErr)
	a.recordFailure(detail, domain.DetailSourceAttachments, ticketID, attachmentsErr)
	a.recordFailure(detail, domain.DetailSourceHistory, ticketID, historyErr)

	if detail.Messages == nil {
		detail.Messages = []domain.TicketMessage{}
	}
	if detail.Attachments == nil {
		detail.Attachments = []domain.AttachmentReference{}
	}
	if detail.History == nil {
		detail.History = []domain.TransitionEvent{}
	}
	return detail, nil
}

func (a *Aggregator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.fetchTimeout)
}

func (a *Aggregator) recordFailure(detail *domain.TicketDetail, source, ticketID string, err error) {
	if err == nil {
		return
	}
	detail.PartialFailures = append(detail.PartialFailures, source)
	a.logger.Warn("ticket detail source failed",
		zap.String("ticket_id", ticketID),
		zap.String("source", source),
		zap.Error(err))
	switch source {
	case domain.DetailSourceMessages:
		detail.Messages = nil
	case domain.DetailSourceAttachments:
		detail.Attachments = nil
	case domain.DetailSourceHistory:
		detail.History = nil
	}
}
