package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/lifecycle"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints for requesters and agents.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		PriorityID:  req.PriorityID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket, nil)})
}

// ListTickets GET /tickets. Requesters see their own tickets; agents see the
// full queue. ?ranked=true orders by SLA urgency for triage.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}

	filter := service.TicketListFilter{
		Ranked: strings.EqualFold(c.Query("ranked"), "true"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if states := c.Query("states"); states != "" {
		for _, state := range strings.Split(states, ",") {
			filter.States = append(filter.States, domain.TicketState(strings.ToUpper(strings.TrimSpace(state))))
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}

	listed, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(listed))
	for i := range listed {
		items = append(items, ticketSummary(&listed[i].Ticket, &listed[i].SLA))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id returns the aggregated detail view.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}

	detail, err := h.tickets.GetTicketDetail(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(detail)})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Event) == "" {
		return util.NewValidationError("event is required", nil)
	}

	ticket, err := h.tickets.ApplyTransition(c.UserContext(), actor, c.Params("id"), lifecycle.Event(req.Event), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket, nil)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	messageType := domain.MessageTypePublicReply
	if req.MessageType != nil {
		messageType = *req.MessageType
	}
	input := service.MessageInput{
		MessageType: messageType,
		Body:        req.Body,
	}
	for _, att := range req.Attachments {
		input.Attachments = append(input.Attachments, service.AttachmentInput{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}

	msg, err := h.tickets.AddMessage(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// Assign POST /tickets/:id/assignee. Agents only (enforced by route group).
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if req.AssigneeID == "" || req.AssigneeID == actor.ID {
		ticket, err = h.assignments.SelfAssign(c.UserContext(), actor, c.Params("id"))
	} else {
		ticket, err = h.assignments.Assign(c.UserContext(), actor, c.Params("id"), req.AssigneeID)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket, nil)})
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket, status *domain.SLAStatus) dto.TicketSummary {
	summary := dto.TicketSummary{
		ID:          ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Title:       ticket.Title,
		State:       ticket.State,
		Priority: dto.PrioritySnapshot{
			ID:    ticket.Priority.ID,
			Name:  ticket.Priority.Name,
			Level: ticket.Priority.Level,
		},
		AssigneeID:  ticket.AssigneeID,
		ReopenCount: ticket.ReopenCount,
		ResolvedAt:  ticket.ResolvedAt,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if status != nil {
		summary.SLA = slaResponse(*status)
	}
	return summary
}

func slaResponse(status domain.SLAStatus) *dto.SLAStatusResponse {
	return &dto.SLAStatusResponse{
		State:            status.State,
		Deadline:         status.Deadline,
		MinutesRemaining: status.MinutesRemaining,
	}
}

func ticketDetail(detail *domain.TicketDetail) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketSummary:   ticketSummary(&detail.Ticket, &detail.SLA),
		Description:     detail.Ticket.Description,
		Messages:        make([]dto.TicketMessageResponse, 0, len(detail.Messages)),
		Attachments:     make([]dto.AttachmentResponse, 0, len(detail.Attachments)),
		History:         make([]dto.TransitionEventResponse, 0, len(detail.History)),
		PartialFailures: detail.PartialFailures,
		Degraded:        detail.Degraded(),
	}
	for i := range detail.Messages {
		resp.Messages = append(resp.Messages, messageResponse(&detail.Messages[i]))
	}
	for _, att := range detail.Attachments {
		resp.Attachments = append(resp.Attachments, dto.AttachmentResponse{
			ID:        att.ID,
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
		})
	}
	for _, event := range detail.History {
		resp.History = append(resp.History, dto.TransitionEventResponse{
			ID:         event.ID,
			From:       event.From,
			To:         event.To,
			Event:      event.Event,
			ActorID:    event.ActorID,
			Reason:     event.Reason,
			OccurredAt: event.OccurredAt,
		})
	}
	return resp
}

func messageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		MessageType: msg.MessageType,
		AuthorType:  msg.AuthorType,
		AuthorID:    msg.AuthorID,
		Body:        msg.Body,
		CreatedAt:   msg.CreatedAt,
	}
}
