package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Preference holds a prospect's channel consent and quiet hours. Quiet hours
// are local-time hour bounds; a nil pair means no quiet window.
type Preference struct {
	ProspectID    uuid.UUID
	AllowWhatsApp bool
	AllowEmail    bool
	QuietStart    *int
	QuietEnd      *int
	UpdatedAt     time.Time
}

// GetPreference returns the prospect's channel preference. A prospect with no
// stored row gets the default: all channels allowed, no quiet hours.
func (r *Repository) GetPreference(ctx context.Context, prospectID uuid.UUID) (Preference, error) {
	var p Preference
	err := r.pool.QueryRow(ctx, `
		SELECT prospect_id, allow_whatsapp, allow_email, quiet_hours_start, quiet_hours_end, updated_at
		FROM channel_preferences
		WHERE prospect_id = $1
	`, prospectID).Scan(&p.ProspectID, &p.AllowWhatsApp, &p.AllowEmail, &p.QuietStart, &p.QuietEnd, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preference{ProspectID: prospectID, AllowWhatsApp: true, AllowEmail: true}, nil
	}
	return p, err
}

// UpsertPreference stores the prospect's channel preference.
func (r *Repository) UpsertPreference(ctx context.Context, p Preference) (Preference, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO channel_preferences (prospect_id, allow_whatsapp, allow_email, quiet_hours_start, quiet_hours_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (prospect_id) DO UPDATE
		SET allow_whatsapp = EXCLUDED.allow_whatsapp,
		    allow_email = EXCLUDED.allow_email,
		    quiet_hours_start = EXCLUDED.quiet_hours_start,
		    quiet_hours_end = EXCLUDED.quiet_hours_end,
		    updated_at = now()
		RETURNING updated_at
	`, p.ProspectID, p.AllowWhatsApp, p.AllowEmail, p.QuietStart, p.QuietEnd).Scan(&p.UpdatedAt)
	return p, err
}
