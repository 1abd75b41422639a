package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/lifecycle"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// AssignmentService handles ticket assignment. Assignment on a new ticket
// doubles as the assign lifecycle event, so picking up a ticket moves it to
// in-progress in one call.
type AssignmentService struct {
	tickets repository.TicketRepository
	desk    *TicketService
	logger  *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(tickets repository.TicketRepository, desk *TicketService, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{tickets: tickets, desk: desk, logger: logger}
}

// Assign sets the ticket's assignee. Only agents may assign; a new ticket
// also transitions to in-progress via the assign event.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	if actor.Type != domain.ActorTypeAgent {
		return nil, util.NewForbidden("agent role required")
	}
	if assigneeID == "" {
		return nil, util.NewValidationError("assignee_id is required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.State == domain.TicketStateNew {
		// The transition bumps the version; re-read before writing the
		// assignee so the optimistic check matches.
		if _, err := s.desk.ApplyTransition(ctx, actor, ticketID, lifecycle.EventAssign, ""); err != nil {
			return nil, err
		}
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, err
		}
	}

	ticket.AssigneeID = &assigneeID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee_id", assigneeID))
	return ticket, nil
}

// SelfAssign assigns the ticket to the acting agent.
func (s *AssignmentService) SelfAssign(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.Assign(ctx, actor, ticketID, actor.ID)
}
