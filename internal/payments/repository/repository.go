// Package repository provides data access for payments and promo codes.
package repository

import (
	"context"
	"errors"
	"time"

	"coachflow_backend/internal/payments/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPaymentNotFound is returned when no payment matches the lookup.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is one expected or settled payment from a prospect.
type Payment struct {
	ID          uuid.UUID
	ProspectID  uuid.UUID
	Amount      int64
	Currency    string
	Kind        string
	Status      domain.Status
	ExternalID  string
	PromoCodeID *uuid.UUID
	Discount    int64
	FinalAmount int64
	Metadata    map[string]string
	FulfilledAt *time.Time
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Repository provides data access for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new payments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, prospect_id, amount, currency, kind, status, external_id,
	promo_code_id, discount, final_amount, metadata, fulfilled_at, created_at, completed_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var status string
	err := row.Scan(
		&p.ID, &p.ProspectID, &p.Amount, &p.Currency, &p.Kind, &status, &p.ExternalID,
		&p.PromoCodeID, &p.Discount, &p.FinalAmount, &p.Metadata, &p.FulfilledAt,
		&p.CreatedAt, &p.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	p.Status = domain.Status(status)
	return p, err
}

// Create inserts a new pending payment.
func (r *Repository) Create(ctx context.Context, p Payment) (Payment, error) {
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	return scanPayment(r.pool.QueryRow(ctx, `
		INSERT INTO payments (prospect_id, amount, currency, kind, status, external_id, promo_code_id, discount, final_amount, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+paymentColumns,
		p.ProspectID, p.Amount, p.Currency, p.Kind, string(domain.StatusPending),
		p.ExternalID, p.PromoCodeID, p.Discount, p.FinalAmount, p.Metadata,
	))
}

// GetByID retrieves one payment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1
	`, id))
}

// GetByExternalID retrieves one payment by its provider-side identifier.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE external_id = $1
	`, externalID))
}

// ListByProspect returns a prospect's payments, newest first.
func (r *Repository) ListByProspect(ctx context.Context, prospectID uuid.UUID) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE prospect_id = $1
		ORDER BY created_at DESC
	`, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ListPending returns pending payments, oldest first, for reconciliation.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, string(domain.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// CompleteIfPending atomically moves the payment into the completed state.
// The status predicate in the WHERE clause makes the transition idempotent
// under concurrent webhook and reconcile updates: exactly one caller sees
// completed=true for any payment.
func (r *Repository) CompleteIfPending(ctx context.Context, externalID string) (Payment, bool, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, completed_at = now()
		WHERE external_id = $1 AND status = $3
		RETURNING `+paymentColumns,
		externalID, string(domain.StatusCompleted), string(domain.StatusPending),
	))
	if errors.Is(err, ErrPaymentNotFound) {
		return Payment{}, false, nil
	}
	if err != nil {
		return Payment{}, false, err
	}
	return p, true, nil
}

// FailIfPending atomically moves the payment into the failed state. Payments
// already completed or failed are left untouched.
func (r *Repository) FailIfPending(ctx context.Context, externalID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $2 WHERE external_id = $1 AND status = $3
	`, externalID, string(domain.StatusFailed), string(domain.StatusPending))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetFulfilled records that post-payment fulfillment ran. Idempotent; the
// first fulfillment wins.
func (r *Repository) SetFulfilled(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET fulfilled_at = now() WHERE id = $1 AND fulfilled_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
