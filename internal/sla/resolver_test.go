package sla

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func TestResolveFromPriority(t *testing.T) {
	r := NewResolver(0, 0)

	policy := r.Resolve(&domain.Priority{Level: 4, ResponseMinutes: 30, ResolutionMinutes: 120})
	assert.Equal(t, domain.SLAPolicy{ResponseMinutes: 30, ResolutionMinutes: 120}, policy)
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	r := NewResolver(0, 0)

	tests := []struct {
		name     string
		priority *domain.Priority
		want     domain.SLAPolicy
	}{
		{
			name:     "nil priority",
			priority: nil,
			want:     domain.SLAPolicy{ResponseMinutes: DefaultResponseMinutes, ResolutionMinutes: DefaultResolutionMinutes},
		},
		{
			name:     "zero budgets",
			priority: &domain.Priority{Level: 2},
			want:     domain.SLAPolicy{ResponseMinutes: DefaultResponseMinutes, ResolutionMinutes: DefaultResolutionMinutes},
		},
		{
			name:     "partial budgets",
			priority: &domain.Priority{Level: 3, ResponseMinutes: 15},
			want:     domain.SLAPolicy{ResponseMinutes: 15, ResolutionMinutes: DefaultResolutionMinutes},
		},
		{
			name:     "negative values ignored",
			priority: &domain.Priority{Level: 1, ResponseMinutes: -5, ResolutionMinutes: -10},
			want:     domain.SLAPolicy{ResponseMinutes: DefaultResponseMinutes, ResolutionMinutes: DefaultResolutionMinutes},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Resolve(tc.priority))
		})
	}
}

func TestResolveConfiguredDefaults(t *testing.T) {
	r := NewResolver(10, 600)
	policy := r.Resolve(nil)
	assert.Equal(t, domain.SLAPolicy{ResponseMinutes: 10, ResolutionMinutes: 600}, policy)
}
