package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/service"
)

// SLAMonitor periodically sweeps open tickets and publishes deadline-risk
// events when a ticket enters the at-risk window or breaches. The ticket
// engine itself owns no timers; this worker is the scheduler that drives
// recurring evaluation.
type SLAMonitor struct {
	tickets    *service.TicketService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.WorkerConfig

	mu       sync.Mutex
	lastSeen map[string]domain.SLAState
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(tickets *service.TicketService, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.WorkerConfig) *SLAMonitor {
	return &SLAMonitor{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		lastSeen:   make(map[string]domain.SLAState),
	}
}

// RegisterHandlers subscribes the monitor to transition events. A ticket that
// resolves or closes leaves the open set and would otherwise keep its dedupe
// entry forever; dropping it here both bounds lastSeen and lets a reopened,
// still-breached ticket fire a fresh deadline-risk event.
func (m *SLAMonitor) RegisterHandlers() {
	if m.dispatcher == nil {
		return
	}
	m.dispatcher.Subscribe(events.EventTicketTransitioned, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketTransitionedPayload)
		if !ok {
			return nil
		}
		switch payload.Transition.To {
		case domain.TicketStateResolved, domain.TicketStateClosed:
			m.forget(event.TicketID)
		}
		return nil
	})
}

// Start runs the sweep loop until ctx is cancelled.
func (m *SLAMonitor) Start(ctx context.Context) {
	if !m.cfg.SLAMonitorEnabled {
		m.logger.Info("sla monitor disabled")
		return
	}
	interval := m.cfg.SLAMonitorInterval()
	m.logger.Info("sla monitor started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *SLAMonitor) sweep(ctx context.Context) {
	tickets, err := m.tickets.ListOpenTickets(ctx, m.cfg.SLAMonitorBatchSize)
	if err != nil {
		m.logger.Warn("sla sweep: list open tickets", zap.Error(err))
		return
	}

	for i := range tickets {
		ticket := &tickets[i]
		status := m.tickets.SLAStatusFor(ctx, ticket)
		if status.State != domain.SLAAtRisk && status.State != domain.SLABreached {
			m.forget(ticket.ID)
			continue
		}
		if !m.shouldPublish(ticket.ID, status.State) {
			continue
		}
		m.publishRisk(ctx, ticket, status)
	}
}

// shouldPublish suppresses repeat events for a ticket that stays in the same
// SLA state across sweeps. A move from AT_RISK to BREACHED fires again.
func (m *SLAMonitor) shouldPublish(ticketID string, state domain.SLAState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSeen[ticketID] == state {
		return false
	}
	m.lastSeen[ticketID] = state
	return true
}

func (m *SLAMonitor) forget(ticketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSeen, ticketID)
}

func (m *SLAMonitor) publishRisk(ctx context.Context, ticket *domain.Ticket, status domain.SLAStatus) {
	if m.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketDeadlineRisk,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{ID: "sla-monitor", Type: domain.ActorTypeSystem},
		Timestamp: time.Now().UTC(),
		Payload: events.TicketDeadlineRiskPayload{
			State:            status.State,
			Deadline:         status.Deadline,
			MinutesRemaining: status.MinutesRemaining,
		},
	}
	if err := m.dispatcher.Publish(ctx, event); err != nil {
		m.logger.Warn("publish deadline risk", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}
