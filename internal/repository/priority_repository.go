package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/pkg/util"
)

// PriorityRepository stores priority definitions. Tickets snapshot their SLA
// budgets from these rows at creation, so edits here never rewrite history.
type PriorityRepository interface {
	Create(ctx context.Context, priority *domain.Priority) error
	GetByID(ctx context.Context, id string) (*domain.Priority, error)
	List(ctx context.Context) ([]domain.Priority, error)
}

type priorityRepository struct {
	pool *pgxpool.Pool
}

// NewPriorityRepository instantiates repository.
func NewPriorityRepository(pool *pgxpool.Pool) PriorityRepository {
	return &priorityRepository{pool: pool}
}

func (r *priorityRepository) Create(ctx context.Context, priority *domain.Priority) error {
	const query = `
        INSERT INTO priorities (name, level, response_minutes, resolution_minutes)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		priority.Name,
		priority.Level,
		priority.ResponseMinutes,
		priority.ResolutionMinutes,
	).Scan(&priority.ID, &priority.CreatedAt, &priority.UpdatedAt)
}

func (r *priorityRepository) GetByID(ctx context.Context, id string) (*domain.Priority, error) {
	const query = `
        SELECT id, name, level, response_minutes, resolution_minutes, created_at, updated_at
        FROM priorities WHERE id=$1`
	var priority domain.Priority
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&priority.ID,
		&priority.Name,
		&priority.Level,
		&priority.ResponseMinutes,
		&priority.ResolutionMinutes,
		&priority.CreatedAt,
		&priority.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("priority", map[string]any{"id": id})
		}
		return nil, err
	}
	return &priority, nil
}

func (r *priorityRepository) List(ctx context.Context) ([]domain.Priority, error) {
	const query = `
        SELECT id, name, level, response_minutes, resolution_minutes, created_at, updated_at
        FROM priorities ORDER BY level DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Priority
	for rows.Next() {
		var priority domain.Priority
		if err := rows.Scan(
			&priority.ID,
			&priority.Name,
			&priority.Level,
			&priority.ResponseMinutes,
			&priority.ResolutionMinutes,
			&priority.CreatedAt,
			&priority.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, priority)
	}
	return result, rows.Err()
}
