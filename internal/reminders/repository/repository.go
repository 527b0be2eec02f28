// Package repository provides data access for reminders.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReminderNotFound is returned when no reminder matches the lookup.
var ErrReminderNotFound = errors.New("reminder not found")

// Reminder is one scheduled follow-up message to a prospect.
type Reminder struct {
	ID           uuid.UUID
	ProspectID   uuid.UUID
	ReminderType string
	Message      string
	ScheduledAt  time.Time
	SentAt       *time.Time
	IsSent       bool
	CreatedAt    time.Time
}

// Repository provides data access for reminders.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new reminders repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reminderColumns = `id, prospect_id, reminder_type, message, scheduled_at, sent_at, is_sent, created_at`

func scanReminder(row pgx.Row) (Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.ProspectID, &r.ReminderType, &r.Message, &r.ScheduledAt, &r.SentAt, &r.IsSent, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reminder{}, ErrReminderNotFound
	}
	return r, err
}

// Create inserts a new reminder.
func (r *Repository) Create(ctx context.Context, rem Reminder) (Reminder, error) {
	return scanReminder(r.pool.QueryRow(ctx, `
		INSERT INTO reminders (prospect_id, reminder_type, message, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+reminderColumns,
		rem.ProspectID, rem.ReminderType, rem.Message, rem.ScheduledAt,
	))
}

// ListByProspect returns a prospect's reminders, soonest first.
func (r *Repository) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE prospect_id = $1
		ORDER BY scheduled_at
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListDue returns unsent reminders whose time has come, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE NOT is_sent AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

// MarkSent flags the reminder as delivered. Idempotent; only the first call
// flips the flag.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET is_sent = TRUE, sent_at = now() WHERE id = $1 AND NOT is_sent
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Reschedule moves an unsent reminder to a later time.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET scheduled_at = $2 WHERE id = $1 AND NOT is_sent
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// Delete removes a reminder.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func collectReminders(rows pgx.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}
