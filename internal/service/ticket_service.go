package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/aggregate"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/cache"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/lifecycle"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/sla"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// TicketService coordinates ticket workflows: creation with SLA snapshot,
// lifecycle transitions, and the aggregated detail view.
type TicketService struct {
	tickets     repository.TicketRepository
	priorities  repository.PriorityRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	auditTrail  repository.TicketEventRepository
	aggregator  *aggregate.Aggregator
	resolver    *sla.Resolver
	evaluator   *sla.Evaluator
	clock       sla.Clock
	capability  auth.CapabilityPolicy
	dispatcher  events.Dispatcher
	statusCache *cache.SLAStatusCache
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	PriorityRepo    repository.PriorityRepository
	MessageRepo     repository.TicketMessageRepository
	AttachmentRepo  repository.AttachmentRepository
	TicketEventRepo repository.TicketEventRepository
	Aggregator      *aggregate.Aggregator
	Resolver        *sla.Resolver
	Evaluator       *sla.Evaluator
	Clock           sla.Clock
	Capability      auth.CapabilityPolicy
	Dispatcher      events.Dispatcher
	StatusCache     *cache.SLAStatusCache
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	PriorityID  string
	Title       string
	Description string
}

// TicketListFilter describes listing parameters. Ranked listings order by
// SLA urgency instead of creation time.
type TicketListFilter struct {
	States     []domain.TicketState
	SearchTerm *string
	Limit      int
	Offset     int
	Ranked     bool
}

// TicketWithSLA pairs a ticket with its live SLA evaluation.
type TicketWithSLA struct {
	Ticket domain.Ticket
	SLA    domain.SLAStatus
}

// MessageInput describes an added message with optional attachment metadata.
type MessageInput struct {
	MessageType domain.TicketMessageType
	Body        string
	Attachments []AttachmentInput
}

// AttachmentInput defines attachment metadata.
type AttachmentInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = sla.SystemClock{}
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		priorities:  deps.PriorityRepo,
		messages:    deps.MessageRepo,
		attachments: deps.AttachmentRepo,
		auditTrail:  deps.TicketEventRepo,
		aggregator:  deps.Aggregator,
		resolver:    deps.Resolver,
		evaluator:   deps.Evaluator,
		clock:       clock,
		capability:  deps.Capability,
		dispatcher:  deps.Dispatcher,
		statusCache: deps.StatusCache,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// CreateTicket creates a ticket with its SLA policy snapshot. A missing
// priority reference is an error, but a priority without budgets falls back
// to default budgets: absent policy data never blocks creation.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, util.NewValidationError("title is required", nil)
	}

	var priority *domain.Priority
	if input.PriorityID != "" {
		found, err := s.priorities.GetByID(ctx, input.PriorityID)
		if err != nil {
			return nil, err
		}
		priority = found
	}
	policy := s.resolver.Resolve(priority)

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: actor.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		State:       domain.TicketStateNew,
		Policy:      &policy,
	}
	if priority != nil {
		ticket.Priority = *priority
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	status := s.evaluator.EvaluateTicket(ticket, s.clock.Now())
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			ExternalKey:       ticket.ExternalKey,
			PriorityLevel:     ticket.Priority.Level,
			ResolutionMinutes: policy.ResolutionMinutes,
			Deadline:          status.Deadline,
			Title:             ticket.Title,
		},
	})
	return ticket, nil
}

// ApplyTransition runs one lifecycle event against a ticket: capability
// check, pure state computation, versioned write-back, audit append, event
// publication. A lost optimistic-concurrency race surfaces as CONFLICT; the
// caller re-reads and retries.
func (s *TicketService) ApplyTransition(ctx context.Context, actor domain.Actor, ticketID string, event lifecycle.Event, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.capability.CanTrigger(actor, ticket, event); err != nil {
		return nil, err
	}

	payload := lifecycle.Payload{ActorID: actor.ID, Reason: reason}
	updated, transition, err := lifecycle.Apply(*ticket, event, payload, s.clock.Now())
	if err != nil {
		var invalid *lifecycle.InvalidTransitionError
		if errors.As(err, &invalid) {
			return nil, util.NewInvalidTransition(string(invalid.Event), string(invalid.From), err)
		}
		return nil, err
	}

	if err := s.tickets.Update(ctx, &updated); err != nil {
		return nil, err
	}
	transition.ID = uuid.NewString()
	if err := s.auditTrail.Append(ctx, &transition); err != nil {
		// The transition is already committed; losing one audit row must
		// not roll back the state change.
		s.logger.Error("append transition audit failed",
			zap.String("ticket_id", updated.ID),
			zap.Error(err))
	}

	s.statusCache.Invalidate(ctx, updated.ID)
	s.metrics.RecordTransition(transition.From, transition.To)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTransitioned,
		TicketID: updated.ID,
		Actor:    actor,
		Payload: events.TicketTransitionedPayload{
			Transition:  transition,
			ReopenCount: updated.ReopenCount,
			ResolvedAt:  updated.ResolvedAt,
		},
	})
	return &updated, nil
}

// GetTicketDetail builds the aggregated view: core record plus messages,
// attachments and history fetched concurrently, with per-source degradation,
// topped with the live SLA evaluation.
func (s *TicketService) GetTicketDetail(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketDetail, error) {
	detail, err := s.aggregator.Aggregate(ctx, ticketID)
	if err != nil {
		var domainErr *util.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, util.NewAggregationFailed(err)
	}
	if err := s.checkReadAccess(actor, &detail.Ticket); err != nil {
		return nil, err
	}
	if actor.Type == domain.ActorTypeRequester {
		detail.Messages = filterInternalNotes(detail.Messages)
	}

	detail.SLA = s.slaStatus(ctx, &detail.Ticket)
	s.metrics.RecordAggregation(detail.PartialFailures)
	return detail, nil
}

// ListTickets returns tickets visible to the actor. With Ranked set, the
// result is ordered by SLA urgency (breached first, nearest deadline first)
// instead of recency.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]TicketWithSLA, error) {
	repoFilter := repository.TicketFilter{
		States:     filter.States,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.Type == domain.ActorTypeRequester {
		requesterID := actor.ID
		repoFilter.RequesterID = &requesterID
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if filter.Ranked {
		tickets = s.evaluator.Rank(tickets, now)
	}

	result := make([]TicketWithSLA, len(tickets))
	for i := range tickets {
		status := s.evaluator.EvaluateTicket(&tickets[i], now)
		s.metrics.RecordSLAState(status.State)
		result[i] = TicketWithSLA{Ticket: tickets[i], SLA: status}
	}
	return result, nil
}

// AddMessage appends a message to a ticket. A requester reply on a ticket
// waiting for the customer also moves it back to in-progress.
func (s *TicketService) AddMessage(ctx context.Context, actor domain.Actor, ticketID string, input MessageInput) (*domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.checkReadAccess(actor, ticket); err != nil {
		return nil, err
	}
	if actor.Type == domain.ActorTypeRequester && input.MessageType != domain.MessageTypePublicReply {
		return nil, util.NewForbidden("requesters can only post public replies")
	}

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, util.NewValidationError("message body is required", nil)
	}

	actorID := actor.ID
	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorType:  authorTypeFor(actor),
		AuthorID:    &actorID,
		MessageType: input.MessageType,
		Body:        body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	for _, att := range input.Attachments {
		record := &domain.AttachmentReference{
			TicketID:   ticket.ID,
			MessageID:  &msg.ID,
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		}
		if err := s.attachments.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})

	if actor.Type == domain.ActorTypeRequester && ticket.State == domain.TicketStatePendingCustomer {
		if _, err := s.ApplyTransition(ctx, actor, ticket.ID, lifecycle.EventCustomerReplied, ""); err != nil {
			s.logger.Warn("auto transition after customer reply failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return msg, nil
}

// ListOpenTickets exposes live tickets for the SLA monitor.
func (s *TicketService) ListOpenTickets(ctx context.Context, limit int) ([]domain.Ticket, error) {
	return s.tickets.ListOpen(ctx, limit)
}

// SLAStatusFor evaluates one ticket, consulting the minute-bucket cache.
func (s *TicketService) SLAStatusFor(ctx context.Context, ticket *domain.Ticket) domain.SLAStatus {
	return s.slaStatus(ctx, ticket)
}

func (s *TicketService) slaStatus(ctx context.Context, ticket *domain.Ticket) domain.SLAStatus {
	now := s.clock.Now()
	if status, ok := s.statusCache.Get(ctx, ticket.ID, now); ok {
		return status
	}
	status := s.evaluator.EvaluateTicket(ticket, now)
	s.statusCache.Set(ctx, ticket.ID, now, status)
	s.metrics.RecordSLAState(status.State)
	return status
}

func (s *TicketService) checkReadAccess(actor domain.Actor, ticket *domain.Ticket) error {
	switch actor.Type {
	case domain.ActorTypeAgent, domain.ActorTypeSystem:
		return nil
	case domain.ActorTypeRequester:
		if ticket.RequesterID != actor.ID {
			return util.NewForbidden("not the ticket requester")
		}
		return nil
	default:
		return util.NewForbidden("unknown actor type")
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func filterInternalNotes(msgs []domain.TicketMessage) []domain.TicketMessage {
	filtered := make([]domain.TicketMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.MessageType == domain.MessageTypeInternalNote {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

func authorTypeFor(actor domain.Actor) domain.MessageAuthorType {
	switch actor.Type {
	case domain.ActorTypeAgent:
		return domain.AuthorTypeAgent
	case domain.ActorTypeSystem:
		return domain.AuthorTypeSystem
	default:
		return domain.AuthorTypeRequester
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	cut := max - 3
	suffix := "..."
	if max <= 3 {
		cut = max
		suffix = ""
	}
	// never split a multi-byte rune
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}
