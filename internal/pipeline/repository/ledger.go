package repository

import (
	"context"

	"coachflow_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// AppendEvent writes one row to the append-only event ledger.
func (r *Repository) AppendEvent(ctx context.Context, e domain.ClientEvent) (domain.ClientEvent, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO client_events (prospect_id, event_type, description, actor_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, e.ProspectID, string(e.Type), e.Description, e.ActorID, e.OccurredAt).Scan(&e.ID, &e.CreatedAt)
	return e, err
}

// ListEvents returns a prospect's ledger entries, newest first.
func (r *Repository) ListEvents(ctx context.Context, prospectID uuid.UUID, limit int) ([]domain.ClientEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, prospect_id, event_type, description, actor_id, occurred_at, created_at
		FROM client_events
		WHERE prospect_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, prospectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ClientEvent
	for rows.Next() {
		var e domain.ClientEvent
		var eventType string
		if err := rows.Scan(&e.ID, &e.ProspectID, &eventType, &e.Description, &e.ActorID, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(eventType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendHistory writes one immutable stage transition record.
func (r *Repository) AppendHistory(ctx context.Context, h domain.StageHistoryEntry) (domain.StageHistoryEntry, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stage_history (prospect_id, stage_id, funnel_id, moved_at, moved_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, h.ProspectID, h.StageID, h.FunnelID, h.MovedAt, h.MovedBy, h.Notes).Scan(&h.ID)
	return h, err
}

// ListHistory returns a prospect's stage transitions, newest first.
func (r *Repository) ListHistory(ctx context.Context, prospectID uuid.UUID) ([]domain.StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, prospect_id, stage_id, funnel_id, moved_at, moved_by, notes
		FROM stage_history
		WHERE prospect_id = $1
		ORDER BY moved_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StageHistoryEntry
	for rows.Next() {
		var h domain.StageHistoryEntry
		if err := rows.Scan(&h.ID, &h.ProspectID, &h.StageID, &h.FunnelID, &h.MovedAt, &h.MovedBy, &h.Notes); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
