package sla

import "github.com/spec-kit/ticketdesk/internal/domain"

// Default budgets applied when a priority carries no usable minute values.
// Absence of policy data must never block ticket creation.
const (
	DefaultResponseMinutes   = 60
	DefaultResolutionMinutes = 4320
)

// Resolver derives an SLA policy snapshot from a priority.
type Resolver struct {
	defaultResponseMinutes   int
	defaultResolutionMinutes int
}

// NewResolver constructs a resolver with the given fallback budgets.
// Non-positive fallbacks are replaced with the package defaults.
func NewResolver(defaultResponseMinutes, defaultResolutionMinutes int) *Resolver {
	if defaultResponseMinutes <= 0 {
		defaultResponseMinutes = DefaultResponseMinutes
	}
	if defaultResolutionMinutes <= 0 {
		defaultResolutionMinutes = DefaultResolutionMinutes
	}
	return &Resolver{
		defaultResponseMinutes:   defaultResponseMinutes,
		defaultResolutionMinutes: defaultResolutionMinutes,
	}
}

// Resolve returns the policy snapshot for a priority. A nil priority or a
// missing/zero minute value falls back to the default budget rather than
// failing.
func (r *Resolver) Resolve(priority *domain.Priority) domain.SLAPolicy {
	policy := domain.SLAPolicy{
		ResponseMinutes:   r.defaultResponseMinutes,
		ResolutionMinutes: r.defaultResolutionMinutes,
	}
	if priority == nil {
		return policy
	}
	if priority.ResponseMinutes > 0 {
		policy.ResponseMinutes = priority.ResponseMinutes
	}
	if priority.ResolutionMinutes > 0 {
		policy.ResolutionMinutes = priority.ResolutionMinutes
	}
	return policy
}
