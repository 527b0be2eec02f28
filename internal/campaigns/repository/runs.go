package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ErrRunNotFound is returned when no campaign run matches the lookup.
var ErrRunNotFound = errors.New("campaign run not found")

// Run is one execution of a campaign against an audience.
type Run struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	AudienceID  *uuid.UUID
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Total       int
	Sent        int
	Errors      int
}

// Delivery is one per-prospect per-channel dispatch outcome.
type Delivery struct {
	ID         uuid.UUID
	RunID      uuid.UUID
	CampaignID uuid.UUID
	ProspectID uuid.UUID
	Channel    string
	Status     string
	CreatedAt  time.Time
}

// CreateRun opens a new run record in running status.
func (r *Repository) CreateRun(ctx context.Context, campaignID uuid.UUID, audienceID *uuid.UUID) (Run, error) {
	var run Run
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_runs (campaign_id, audience_id)
		VALUES ($1, $2)
		RETURNING id, campaign_id, audience_id, status, started_at, completed_at, total, sent, errors
	`, campaignID, audienceID).Scan(
		&run.ID, &run.CampaignID, &run.AudienceID, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.Total, &run.Sent, &run.Errors,
	)
	return run, err
}

// FinishRun records the final counters and closes the run.
func (r *Repository) FinishRun(ctx context.Context, runID uuid.UUID, status string, total, sent, errCount int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaign_runs
		SET status = $2, total = $3, sent = $4, errors = $5, completed_at = now()
		WHERE id = $1
	`, runID, status, total, sent, errCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ListRuns returns a campaign's runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, campaignID uuid.UUID) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, audience_id, status, started_at, completed_at, total, sent, errors
		FROM campaign_runs
		WHERE campaign_id = $1
		ORDER BY started_at DESC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.CampaignID, &run.AudienceID, &run.Status,
			&run.StartedAt, &run.CompletedAt, &run.Total, &run.Sent, &run.Errors,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastRunAt returns the start time of the campaign's most recent run.
func (r *Repository) LastRunAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error) {
	var startedAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT started_at FROM campaign_runs
		WHERE campaign_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, campaignID).Scan(&startedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &startedAt, nil
}

// InsertDelivery appends one delivery outcome to the ledger.
func (r *Repository) InsertDelivery(ctx context.Context, d Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (run_id, campaign_id, prospect_id, channel, status)
		VALUES ($1, $2, $3, $4, $5)
	`, d.RunID, d.CampaignID, d.ProspectID, d.Channel, d.Status)
	return err
}

// HasRecentDelivery reports whether the prospect already received this
// campaign on this channel since the given time. Only successful sends
// count; failures and skips do not suppress a retry.
func (r *Repository) HasRecentDelivery(ctx context.Context, campaignID, prospectID uuid.UUID, channel string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM deliveries
			WHERE campaign_id = $1 AND prospect_id = $2 AND channel = $3
			  AND status = $4 AND created_at >= $5
		)
	`, campaignID, prospectID, channel, DeliverySent, since).Scan(&exists)
	return exists, err
}

// ListDeliveries returns a run's delivery outcomes.
func (r *Repository) ListDeliveries(ctx context.Context, runID uuid.UUID) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, campaign_id, prospect_id, channel, status, created_at
		FROM deliveries
		WHERE run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.RunID, &d.CampaignID, &d.ProspectID, &d.Channel, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
