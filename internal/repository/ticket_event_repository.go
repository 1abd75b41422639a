package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// TicketEventRepository is the audit sink for lifecycle transitions.
// Entries are append-only.
type TicketEventRepository interface {
	Append(ctx context.Context, event *domain.TransitionEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionEvent, error)
}

type ticketEventRepository struct {
	pool *pgxpool.Pool
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(pool *pgxpool.Pool) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

func (r *ticketEventRepository) Append(ctx context.Context, event *domain.TransitionEvent) error {
	const query = `
        INSERT INTO ticket_events (ticket_id, from_state, to_state, event, actor_id, reason, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		event.TicketID,
		event.From,
		event.To,
		event.Event,
		event.ActorID,
		event.Reason,
		event.OccurredAt,
	).Scan(&event.ID)
}

// ListByTicket returns the audit trail in ascending chronological order.
func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TransitionEvent, error) {
	const query = `
        SELECT id, ticket_id, from_state, to_state, event, actor_id, reason, occurred_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY occurred_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TransitionEvent
	for rows.Next() {
		var event domain.TransitionEvent
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.From,
			&event.To,
			&event.Event,
			&event.ActorID,
			&event.Reason,
			&event.OccurredAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
