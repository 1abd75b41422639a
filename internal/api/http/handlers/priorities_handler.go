package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// PrioritiesHandler manages priority definition endpoints.
type PrioritiesHandler struct {
	priorities *service.PriorityService
}

// NewPrioritiesHandler constructs handler.
func NewPrioritiesHandler(priorities *service.PriorityService) *PrioritiesHandler {
	return &PrioritiesHandler{priorities: priorities}
}

// Create POST /priorities. Agents only.
func (h *PrioritiesHandler) Create(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	priority, err := h.priorities.Create(c.UserContext(), actor, service.PriorityCreateInput{
		Name:              req.Name,
		Level:             req.Level,
		ResponseMinutes:   req.ResponseMinutes,
		ResolutionMinutes: req.ResolutionMinutes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": priorityResponse(priority)})
}

// List GET /priorities.
func (h *PrioritiesHandler) List(c *fiber.Ctx) error {
	priorities, err := h.priorities.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PriorityResponse, 0, len(priorities))
	for i := range priorities {
		items = append(items, priorityResponse(&priorities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func priorityResponse(priority *domain.Priority) dto.PriorityResponse {
	return dto.PriorityResponse{
		ID:                priority.ID,
		Name:              priority.Name,
		Level:             priority.Level,
		ResponseMinutes:   priority.ResponseMinutes,
		ResolutionMinutes: priority.ResolutionMinutes,
		CreatedAt:         priority.CreatedAt,
	}
}
