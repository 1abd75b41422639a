package service

import (
	"context"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// PriorityService manages priority definitions. Edits only affect tickets
// created afterwards; existing SLA snapshots are never rewritten.
type PriorityService struct {
	priorities repository.PriorityRepository
}

// NewPriorityService constructs the service.
func NewPriorityService(priorities repository.PriorityRepository) *PriorityService {
	return &PriorityService{priorities: priorities}
}

// PriorityCreateInput describes priority creation payload.
type PriorityCreateInput struct {
	Name              string
	Level             int
	ResponseMinutes   int
	ResolutionMinutes int
}

// Create registers a priority. Agents only.
func (s *PriorityService) Create(ctx context.Context, actor domain.Actor, input PriorityCreateInput) (*domain.Priority, error) {
	if actor.Type != domain.ActorTypeAgent {
		return nil, util.NewForbidden("agent role required")
	}
	if input.Name == "" {
		return nil, util.NewValidationError("name is required", nil)
	}
	if input.Level < 1 || input.Level > 5 {
		return nil, util.NewValidationError("level must be between 1 and 5", map[string]any{"level": input.Level})
	}

	priority := &domain.Priority{
		Name:              input.Name,
		Level:             input.Level,
		ResponseMinutes:   input.ResponseMinutes,
		ResolutionMinutes: input.ResolutionMinutes,
	}
	if err := s.priorities.Create(ctx, priority); err != nil {
		return nil, err
	}
	return priority, nil
}

// List returns all priorities, most urgent first.
func (s *PriorityService) List(ctx context.Context) ([]domain.Priority, error) {
	return s.priorities.List(ctx)
}
