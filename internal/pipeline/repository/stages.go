// Package repository provides data access for funnels, stages, the event
// ledger, and stage history.
package repository

import (
	"context"
	"errors"

	"coachflow_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStageNotFound is returned when no stage matches the lookup.
var ErrStageNotFound = errors.New("stage not found")

// ErrFunnelNotFound is returned when no funnel matches the lookup.
var ErrFunnelNotFound = errors.New("funnel not found")

// Repository provides read access to the stage directory and append access
// to the event and history ledgers.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new pipeline repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const stageColumns = `id, funnel_id, name, stage_order, is_active, created_at`

func scanStage(row pgx.Row) (domain.Stage, error) {
	var s domain.Stage
	err := row.Scan(&s.ID, &s.FunnelID, &s.Name, &s.Order, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Stage{}, ErrStageNotFound
	}
	return s, err
}

// GetStageByID retrieves one stage.
func (r *Repository) GetStageByID(ctx context.Context, id uuid.UUID) (domain.Stage, error) {
	return scanStage(r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+` FROM stages WHERE id = $1
	`, id))
}

// GetStageByName resolves an active stage by name within a funnel.
func (r *Repository) GetStageByName(ctx context.Context, funnelID uuid.UUID, name string) (domain.Stage, error) {
	return scanStage(r.pool.QueryRow(ctx, `
		SELECT `+stageColumns+` FROM stages
		WHERE funnel_id = $1 AND name = $2 AND is_active
	`, funnelID, name))
}

// ListStages returns the funnel's active stages in order.
func (r *Repository) ListStages(ctx context.Context, funnelID uuid.UUID) ([]domain.Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stageColumns+` FROM stages
		WHERE funnel_id = $1 AND is_active
		ORDER BY stage_order
	`, funnelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// DefaultFunnel returns the oldest active funnel. New prospects enter it
// until an operator assigns another one.
func (r *Repository) DefaultFunnel(ctx context.Context) (domain.Funnel, error) {
	var f domain.Funnel
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, is_active, created_at FROM funnels
		WHERE is_active
		ORDER BY created_at
		LIMIT 1
	`).Scan(&f.ID, &f.Name, &f.IsActive, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Funnel{}, ErrFunnelNotFound
	}
	return f, err
}

// ListFunnels returns all funnels.
func (r *Repository) ListFunnels(ctx context.Context) ([]domain.Funnel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, is_active, created_at FROM funnels ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funnels []domain.Funnel
	for rows.Next() {
		var f domain.Funnel
		if err := rows.Scan(&f.ID, &f.Name, &f.IsActive, &f.CreatedAt); err != nil {
			return nil, err
		}
		funnels = append(funnels, f)
	}
	return funnels, rows.Err()
}
