// Package repository provides data access for prospects (coaching clients).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProspectNotFound is returned when no prospect matches the lookup.
var ErrProspectNotFound = errors.New("prospect not found")

// ErrProspectHasHistory is returned when a non-cascading delete hits a
// prospect that still owns payments or pipeline history.
var ErrProspectHasHistory = errors.New("prospect has payment or pipeline history")

// Prospect is a coaching client moving through the sales funnel.
type Prospect struct {
	ID            uuid.UUID
	FirstName     string
	LastName      string
	ChatHandle    string
	Email         string
	Phone         string
	FunnelID      *uuid.UUID
	StageID       *uuid.UUID
	Status        string
	LastContactAt *time.Time
	NextContactAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListParams filters prospects for audience selection. Zero values mean
// "no constraint".
type ListParams struct {
	Status         string
	NeedChatHandle bool
	NeedEmail      bool
	NeedPhone      bool
	Limit          int
}

const prospectColumns = `id, first_name, last_name, chat_handle, email, phone,
	funnel_id, stage_id, status, last_contact_at, next_contact_at, created_at, updated_at`

// Repository provides data access for prospects.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new prospect repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProspect(row pgx.Row) (Prospect, error) {
	var p Prospect
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.ChatHandle, &p.Email, &p.Phone,
		&p.FunnelID, &p.StageID, &p.Status, &p.LastContactAt, &p.NextContactAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prospect{}, ErrProspectNotFound
	}
	return p, err
}

// Create inserts a new prospect record.
func (r *Repository) Create(ctx context.Context, p Prospect) (Prospect, error) {
	return scanProspect(r.pool.QueryRow(ctx, `
		INSERT INTO prospects (first_name, last_name, chat_handle, email, phone, funnel_id, stage_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+prospectColumns,
		p.FirstName, p.LastName, p.ChatHandle, p.Email, p.Phone, p.FunnelID, p.StageID, p.Status,
	))
}

// GetByID retrieves one prospect.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Prospect, error) {
	return scanProspect(r.pool.QueryRow(ctx, `
		SELECT `+prospectColumns+` FROM prospects WHERE id = $1
	`, id))
}

// UpdateContact updates the prospect's editable contact fields.
func (r *Repository) UpdateContact(ctx context.Context, p Prospect) (Prospect, error) {
	return scanProspect(r.pool.QueryRow(ctx, `
		UPDATE prospects
		SET first_name = $2, last_name = $3, chat_handle = $4, email = $5, phone = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+prospectColumns,
		p.ID, p.FirstName, p.LastName, p.ChatHandle, p.Email, p.Phone,
	))
}

// SetStage moves the prospect to a stage and records the derived status.
func (r *Repository) SetStage(ctx context.Context, id, funnelID, stageID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET funnel_id = $2, stage_id = $3, status = $4, updated_at = now()
		WHERE id = $1
	`, id, funnelID, stageID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProspectNotFound
	}
	return nil
}

// AdvanceLastContact moves last_contact_at forward, never backwards.
func (r *Repository) AdvanceLastContact(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE prospects
		SET last_contact_at = $2, updated_at = now()
		WHERE id = $1 AND (last_contact_at IS NULL OR last_contact_at < $2)
	`, id, at)
	return err
}

// SetNextContact sets or clears the follow-up deadline.
func (r *Repository) SetNextContact(ctx context.Context, id uuid.UUID, at *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE prospects SET next_contact_at = $2, updated_at = now() WHERE id = $1
	`, id, at)
	return err
}

// List returns prospects matching the filter, newest first, capped at
// params.Limit.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Prospect, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM prospects
		WHERE ($1 = '' OR status = $1)
		  AND (NOT $2 OR chat_handle <> '')
		  AND (NOT $3 OR email <> '')
		  AND (NOT $4 OR phone <> '')
		ORDER BY created_at DESC
		LIMIT $5
	`, params.Status, params.NeedChatHandle, params.NeedEmail, params.NeedPhone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete removes a prospect. Without cascade it refuses while the prospect
// still owns payments or stage history; with cascade it deletes dependents
// inside one transaction first.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var paymentCount, historyCount int
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM payments WHERE prospect_id = $1),
			(SELECT count(*) FROM stage_history WHERE prospect_id = $1)
	`, id).Scan(&paymentCount, &historyCount)
	if err != nil {
		return err
	}

	if paymentCount > 0 || historyCount > 0 {
		if !cascade {
			return ErrProspectHasHistory
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM promo_usages WHERE payment_id IN (SELECT id FROM payments WHERE prospect_id = $1)
		`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE prospect_id = $1`, id); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM prospects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProspectNotFound
	}

	return tx.Commit(ctx)
}
