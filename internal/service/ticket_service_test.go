package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticketdesk/internal/aggregate"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/lifecycle"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/sla"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

var serviceTime = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// memTicketRepo implements repository.TicketRepository in memory with the
// same optimistic-concurrency semantics as the postgres implementation.
type memTicketRepo struct {
	tickets map[string]domain.Ticket
	nextID  int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]domain.Ticket)}
}

func (r *memTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = "tk-" + string(rune('0'+r.nextID))
	ticket.Version = 1
	ticket.CreatedAt = serviceTime
	ticket.UpdatedAt = serviceTime
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	current, ok := r.tickets[ticket.ID]
	if !ok {
		return util.NewNotFound("ticket", nil)
	}
	if current.Version != ticket.Version {
		return util.NewConflict("ticket changed concurrently", nil)
	}
	ticket.Version++
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"id": id})
	}
	copied := ticket
	return &copied, nil
}

func (r *memTicketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	for _, ticket := range r.tickets {
		if ticket.ExternalKey == key {
			copied := ticket
			return &copied, nil
		}
	}
	return nil, util.NewNotFound("ticket", nil)
}

func (r *memTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (r *memTicketRepo) ListOpen(ctx context.Context, limit int) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.State == domain.TicketStateResolved || ticket.State == domain.TicketStateClosed {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

type memPriorityRepo struct {
	priorities map[string]domain.Priority
}

func (r *memPriorityRepo) Create(ctx context.Context, priority *domain.Priority) error {
	r.priorities[priority.ID] = *priority
	return nil
}

func (r *memPriorityRepo) GetByID(ctx context.Context, id string) (*domain.Priority, error) {
	priority, ok := r.priorities[id]
	if !ok {
		return nil, util.NewNotFound("priority", map[string]any{"id": id})
	}
	copied := priority
	return &copied, nil
}

func (r *memPriorityRepo) List(ctx context.Context) ([]domain.Priority, error) {
	var result []domain.Priority
	for _, priority := range r.priorities {
		result = append(result, priority)
	}
	return result, nil
}

type memMessageRepo struct {
	messages []domain.TicketMessage
	err      error
}

func (r *memMessageRepo) Create(ctx context.Context, message *domain.TicketMessage) error {
	if r.err != nil {
		return r.err
	}
	message.ID = "m-1"
	message.CreatedAt = serviceTime
	r.messages = append(r.messages, *message)
	return nil
}

func (r *memMessageRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.messages, nil
}

type memAttachmentRepo struct {
	attachments []domain.AttachmentReference
	err         error
}

func (r *memAttachmentRepo) Create(ctx context.Context, attachment *domain.AttachmentReference) error {
	if r.err != nil {
		return r.err
	}
	r.attachments = append(r.attachments, *attachment)
	return nil
}

func (r *memAttachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AttachmentReference, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.attachments, nil
}

type memEventRepo struct {
	entries []domain.TransitionEvent
}

func (r *memEventRepo) Append(ctx context.Context, event *domain.TransitionEvent) error {
	r.entries = append(r.entries, *event)
	return nil
}

func (r *memEventRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionEvent, error) {
	return r.entries, nil
}

type capturingDispatcher struct {
	published []events.Event
}

func (d *capturingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

type fixture struct {
	svc        *TicketService
	tickets    *memTicketRepo
	priorities *memPriorityRepo
	messages   *memMessageRepo
	atts       *memAttachmentRepo
	audit      *memEventRepo
	dispatcher *capturingDispatcher
}

func newFixture() *fixture {
	tickets := newMemTicketRepo()
	priorities := &memPriorityRepo{priorities: map[string]domain.Priority{
		"pri-high": {ID: "pri-high", Name: "High", Level: 4, ResponseMinutes: 60, ResolutionMinutes: 240},
		"pri-bare": {ID: "pri-bare", Name: "Unspecified", Level: 2},
	}}
	messages := &memMessageRepo{}
	atts := &memAttachmentRepo{}
	audit := &memEventRepo{}
	dispatcher := &capturingDispatcher{}

	agg := aggregate.New(aggregate.Dependencies{
		TicketStore:     tickets,
		MessageStore:    messages,
		AttachmentStore: atts,
		HistoryStore:    audit,
	})

	svc := NewTicketService(TicketDependencies{
		TicketRepo:      tickets,
		PriorityRepo:    priorities,
		MessageRepo:     messages,
		AttachmentRepo:  atts,
		TicketEventRepo: audit,
		Aggregator:      agg,
		Resolver:        sla.NewResolver(0, 0),
		Evaluator:       sla.NewEvaluator(0),
		Clock:           fixedClock{now: serviceTime},
		Capability:      auth.NewCapabilityPolicy(),
		Dispatcher:      dispatcher,
		Metrics:         observability.NewMetrics(),
	})
	return &fixture{
		svc:        svc,
		tickets:    tickets,
		priorities: priorities,
		messages:   messages,
		atts:       atts,
		audit:      audit,
		dispatcher: dispatcher,
	}
}

var (
	requester = domain.Actor{ID: "user-1", Type: domain.ActorTypeRequester}
	agent     = domain.Actor{ID: "agent-1", Type: domain.ActorTypeAgent}
)

func TestCreateTicketSnapshotsPolicy(t *testing.T) {
	f := newFixture()

	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		PriorityID:  "pri-high",
		Title:       "  printer on fire  ",
		Description: "it burns",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStateNew, ticket.State)
	assert.Equal(t, "printer on fire", ticket.Title)
	assert.Equal(t, "user-1", ticket.RequesterID)
	require.NotNil(t, ticket.Policy)
	assert.Equal(t, 240, ticket.Policy.ResolutionMinutes)
	assert.NotEmpty(t, ticket.ExternalKey)

	require.Len(t, f.dispatcher.published, 1)
	assert.Equal(t, events.EventTicketCreated, f.dispatcher.published[0].Type)
}

func TestCreateTicketDefaultsWhenPriorityHasNoBudgets(t *testing.T) {
	f := newFixture()

	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		PriorityID: "pri-bare",
		Title:      "no budgets configured",
	})
	require.NoError(t, err)
	require.NotNil(t, ticket.Policy)
	assert.Equal(t, sla.DefaultResolutionMinutes, ticket.Policy.ResolutionMinutes)
	assert.Equal(t, sla.DefaultResponseMinutes, ticket.Policy.ResponseMinutes)
}

func TestCreateTicketUnknownPriorityFails(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		PriorityID: "pri-missing",
		Title:      "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", util.ToDomainError(err).Code)
}

func TestApplyTransitionResolve(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	updated, err := f.svc.ApplyTransition(context.Background(), agent, ticket.ID, lifecycle.EventStartWork, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateInProgress, updated.State)

	updated, err = f.svc.ApplyTransition(context.Background(), agent, ticket.ID, lifecycle.EventResolve, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateResolved, updated.State)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, serviceTime, *updated.ResolvedAt)

	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, "resolve", f.audit.entries[1].Event)
	assert.NotEmpty(t, f.audit.entries[1].ID)
}

func TestApplyTransitionInvalidSurfacesAsDomainError(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	_, err = f.svc.ApplyTransition(context.Background(), agent, ticket.ID, lifecycle.EventClose, "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_TRANSITION", util.ToDomainError(err).Code)

	var invalid *lifecycle.InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))
	assert.Empty(t, f.audit.entries, "rejected transition must not reach the audit trail")
}

func TestApplyTransitionCapabilityDenied(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	_, err = f.svc.ApplyTransition(context.Background(), requester, ticket.ID, lifecycle.EventResolve, "")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", util.ToDomainError(err).Code)
}

func TestReopenFromClosedViaService(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	for _, step := range []lifecycle.Event{lifecycle.EventStartWork, lifecycle.EventResolve, lifecycle.EventClose} {
		_, err = f.svc.ApplyTransition(context.Background(), agent, ticket.ID, step, "")
		require.NoError(t, err)
	}

	reopened, err := f.svc.ApplyTransition(context.Background(), requester, ticket.ID, lifecycle.EventReopen, "customer follow-up")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateReopened, reopened.State)
	assert.Equal(t, 1, reopened.ReopenCount)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestGetTicketDetailDegradesOnAttachmentFailure(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	f.messages.messages = []domain.TicketMessage{
		{ID: "m-1", TicketID: ticket.ID, MessageType: domain.MessageTypePublicReply, Body: "hello"},
		{ID: "m-2", TicketID: ticket.ID, MessageType: domain.MessageTypeInternalNote, Body: "internal"},
	}
	f.atts.err = errors.New("blob store down")

	detail, err := f.svc.GetTicketDetail(context.Background(), requester, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.DetailSourceAttachments}, detail.PartialFailures)
	require.Len(t, detail.Messages, 1, "internal notes are hidden from requesters")
	assert.Equal(t, "m-1", detail.Messages[0].ID)
	assert.Equal(t, domain.SLAOnTrack, detail.SLA.State)
}

func TestGetTicketDetailAccessDenied(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	stranger := domain.Actor{ID: "user-2", Type: domain.ActorTypeRequester}
	_, err = f.svc.GetTicketDetail(context.Background(), stranger, ticket.ID)
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", util.ToDomainError(err).Code)
}

func TestListTicketsRankedOrdersByUrgency(t *testing.T) {
	f := newFixture()

	// Breached: tiny budget, created well in the past.
	f.tickets.tickets["tk-a"] = domain.Ticket{
		ID: "tk-a", RequesterID: "user-1", State: domain.TicketStateInProgress,
		Policy:    &domain.SLAPolicy{ResolutionMinutes: 30},
		CreatedAt: serviceTime.Add(-2 * time.Hour), Version: 1,
	}
	// On track: generous budget.
	f.tickets.tickets["tk-b"] = domain.Ticket{
		ID: "tk-b", RequesterID: "user-1", State: domain.TicketStateNew,
		Policy:    &domain.SLAPolicy{ResolutionMinutes: 10 * 24 * 60},
		CreatedAt: serviceTime, Version: 1,
	}
	// At risk: deadline inside the 24h window.
	f.tickets.tickets["tk-c"] = domain.Ticket{
		ID: "tk-c", RequesterID: "user-1", State: domain.TicketStateInProgress,
		Policy:    &domain.SLAPolicy{ResolutionMinutes: 12 * 60},
		CreatedAt: serviceTime, Version: 1,
	}

	listed, err := f.svc.ListTickets(context.Background(), requester, TicketListFilter{Ranked: true})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "tk-a", listed[0].Ticket.ID)
	assert.Equal(t, domain.SLABreached, listed[0].SLA.State)
	assert.Equal(t, "tk-c", listed[1].Ticket.ID)
	assert.Equal(t, domain.SLAAtRisk, listed[1].SLA.State)
	assert.Equal(t, "tk-b", listed[2].Ticket.ID)
	assert.Equal(t, domain.SLAOnTrack, listed[2].SLA.State)
}

func TestAddMessagePendingCustomerAutoTransitions(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	for _, step := range []lifecycle.Event{lifecycle.EventStartWork, lifecycle.EventAwaitCustomer} {
		_, err = f.svc.ApplyTransition(context.Background(), agent, ticket.ID, step, "")
		require.NoError(t, err)
	}

	_, err = f.svc.AddMessage(context.Background(), requester, ticket.ID, MessageInput{
		MessageType: domain.MessageTypePublicReply,
		Body:        "here is the info you asked for",
	})
	require.NoError(t, err)

	current, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStateInProgress, current.State)
}

func TestAddMessageRequesterCannotPostInternalNote(t *testing.T) {
	f := newFixture()
	ticket, err := f.svc.CreateTicket(context.Background(), requester, TicketCreateInput{Title: "help"})
	require.NoError(t, err)

	_, err = f.svc.AddMessage(context.Background(), requester, ticket.ID, MessageInput{
		MessageType: domain.MessageTypeInternalNote,
		Body:        "sneaky",
	})
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", util.ToDomainError(err).Code)
}

func TestStringPreviewKeepsRuneBoundaries(t *testing.T) {
	long := strings.Repeat("é", 100)
	preview := stringPreview(long, 120)

	assert.True(t, utf8.ValidString(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))
	assert.LessOrEqual(t, len(preview), 120)

	assert.Equal(t, "short", stringPreview("short", 120))
	assert.True(t, utf8.ValidString(stringPreview("日本語のチケット", 10)))
}
