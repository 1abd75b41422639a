package auth

import (
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/lifecycle"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// CapabilityPolicy decides who may trigger which lifecycle event. The state
// machine itself performs no authorization; services consult this policy
// before applying a transition.
type CapabilityPolicy interface {
	CanTrigger(actor domain.Actor, ticket *domain.Ticket, event lifecycle.Event) error
}

// requesterEvents are the transitions a ticket's own requester may trigger.
var requesterEvents = map[lifecycle.Event]struct{}{
	lifecycle.EventClose:           {},
	lifecycle.EventReopen:          {},
	lifecycle.EventCustomerReplied: {},
}

type defaultCapabilityPolicy struct{}

// NewCapabilityPolicy returns the default policy: agents and system actors
// may trigger anything, requesters only close/reopen/reply on their own
// tickets.
func NewCapabilityPolicy() CapabilityPolicy {
	return defaultCapabilityPolicy{}
}

func (defaultCapabilityPolicy) CanTrigger(actor domain.Actor, ticket *domain.Ticket, event lifecycle.Event) error {
	switch actor.Type {
	case domain.ActorTypeAgent, domain.ActorTypeSystem:
		return nil
	case domain.ActorTypeRequester:
		if ticket.RequesterID != actor.ID {
			return util.NewForbidden("not the ticket requester")
		}
		if _, ok := requesterEvents[event]; !ok {
			return util.NewForbidden("requesters cannot trigger this event")
		}
		return nil
	default:
		return util.NewForbidden("unknown actor type")
	}
}
