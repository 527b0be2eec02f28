// Package repository provides data access for campaigns, audiences, runs,
// deliveries, and channel preferences.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Campaign lifecycle statuses.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Delivery channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Delivery outcomes.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
	// DeliverySkipped is part of the status enum but not written today;
	// gate-check failures leave no delivery row.
	DeliverySkipped = "skipped"
)

// ErrCampaignNotFound is returned when no campaign matches the lookup.
var ErrCampaignNotFound = errors.New("campaign not found")

// ErrAudienceNotFound is returned when no audience matches the lookup.
var ErrAudienceNotFound = errors.New("audience not found")

// ErrMessageNotFound is returned when a campaign has no message template yet.
var ErrMessageNotFound = errors.New("campaign message not found")

// Campaign is one outbound messaging campaign.
type Campaign struct {
	ID         uuid.UUID
	Name       string
	Status     string
	Channels   []string
	ScheduleAt *time.Time
	Params     map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message is one revision of a campaign's message template. Revisions are
// append-only; the newest one is used for dispatch.
type Message struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Body       string
	CreatedAt  time.Time
}

// Audience is a saved prospect filter campaigns run against.
type Audience struct {
	ID              uuid.UUID
	Name            string
	StatusFilter    string
	RequireWhatsApp bool
	RequireEmail    bool
	RequirePhone    bool
	CreatedAt       time.Time
}

// Repository provides data access for the campaigns bounded context.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new campaigns repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `id, name, status, channels, schedule_at, params, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.Channels, &c.ScheduleAt, &c.Params, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, err
}

// CreateCampaign inserts a new campaign in draft status.
func (r *Repository) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	return scanCampaign(r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, status, channels, schedule_at, params)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+campaignColumns,
		c.Name, StatusDraft, c.Channels, c.ScheduleAt, c.Params,
	))
}

// GetCampaign retrieves one campaign.
func (r *Repository) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(r.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id))
}

// ListCampaigns returns all campaigns, newest first.
func (r *Repository) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateStatus moves a campaign to the given lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// Schedule marks a draft campaign as scheduled at the given time.
func (r *Repository) Schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns
		SET status = $2, schedule_at = $3, updated_at = now()
		WHERE id = $1 AND status IN ($4, $5)
	`, id, StatusScheduled, at, StatusDraft, StatusScheduled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// ListDueScheduled returns campaigns whose schedule time has passed. Campaigns
// stuck in running status are included so a crashed run gets picked up by the
// next sweep instead of stranding the campaign.
func (r *Repository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]Campaign, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status IN ($1, $2) AND schedule_at IS NOT NULL AND schedule_at <= $3
		ORDER BY schedule_at
		LIMIT $4
	`, StatusScheduled, StatusRunning, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// SetMessage appends a new message template revision for the campaign.
func (r *Repository) SetMessage(ctx context.Context, campaignID uuid.UUID, body string) (Message, error) {
	var m Message
	err := r.pool.QueryRow(ctx, `
		INSERT INTO campaign_messages (campaign_id, body)
		VALUES ($1, $2)
		RETURNING id, campaign_id, body, created_at
	`, campaignID, body).Scan(&m.ID, &m.CampaignID, &m.Body, &m.CreatedAt)
	return m, err
}

// LatestMessage returns the newest message template revision.
func (r *Repository) LatestMessage(ctx context.Context, campaignID uuid.UUID) (Message, error) {
	var m Message
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, body, created_at
		FROM campaign_messages
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, campaignID).Scan(&m.ID, &m.CampaignID, &m.Body, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrMessageNotFound
	}
	return m, err
}

// CreateAudience inserts a saved audience filter.
func (r *Repository) CreateAudience(ctx context.Context, a Audience) (Audience, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO audiences (name, status_filter, require_whatsapp, require_email, require_phone)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING id, created_at
	`, a.Name, a.StatusFilter, a.RequireWhatsApp, a.RequireEmail, a.RequirePhone).Scan(&a.ID, &a.CreatedAt)
	return a, err
}

// GetAudience retrieves one audience.
func (r *Repository) GetAudience(ctx context.Context, id uuid.UUID) (Audience, error) {
	var a Audience
	var statusFilter *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, status_filter, require_whatsapp, require_email, require_phone, created_at
		FROM audiences WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &statusFilter, &a.RequireWhatsApp, &a.RequireEmail, &a.RequirePhone, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Audience{}, ErrAudienceNotFound
	}
	if statusFilter != nil {
		a.StatusFilter = *statusFilter
	}
	return a, err
}

// ListAudiences returns all saved audiences.
func (r *Repository) ListAudiences(ctx context.Context) ([]Audience, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, status_filter, require_whatsapp, require_email, require_phone, created_at
		FROM audiences ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audiences []Audience
	for rows.Next() {
		var a Audience
		var statusFilter *string
		if err := rows.Scan(&a.ID, &a.Name, &statusFilter, &a.RequireWhatsApp, &a.RequireEmail, &a.RequirePhone, &a.CreatedAt); err != nil {
			return nil, err
		}
		if statusFilter != nil {
			a.StatusFilter = *statusFilter
		}
		audiences = append(audiences, a)
	}
	return audiences, rows.Err()
}
