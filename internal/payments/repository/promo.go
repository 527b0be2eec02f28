package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Promo discount types.
const (
	DiscountFixed   = "fixed"
	DiscountPercent = "percent"
)

// ErrPromoNotFound is returned when no promo code matches the lookup.
var ErrPromoNotFound = errors.New("promo code not found")

// ErrPromoExhausted is returned when a redemption would exceed the code's
// total or per-prospect usage limit.
var ErrPromoExhausted = errors.New("promo code usage limit reached")

// PromoCode is a discount code. MaxTotalUses zero means unlimited.
type PromoCode struct {
	ID                 uuid.UUID
	Code               string
	DiscountType       string
	DiscountValue      int64
	MaxTotalUses       int
	MaxUsesPerProspect int
	UsedCount          int
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	IsActive           bool
	CreatedAt          time.Time
}

// Discount computes the discount this code grants on the given amount,
// capped at the amount itself.
func (p PromoCode) Discount(amount int64) int64 {
	var discount int64
	switch p.DiscountType {
	case DiscountPercent:
		discount = amount * p.DiscountValue / 100
	default:
		discount = p.DiscountValue
	}
	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

const promoColumns = `id, code, discount_type, discount_value, max_total_uses,
	max_uses_per_prospect, used_count, valid_from, valid_until, is_active, created_at`

func scanPromo(row pgx.Row) (PromoCode, error) {
	var p PromoCode
	err := row.Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MaxTotalUses,
		&p.MaxUsesPerProspect, &p.UsedCount, &p.ValidFrom, &p.ValidUntil,
		&p.IsActive, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PromoCode{}, ErrPromoNotFound
	}
	return p, err
}

// CreatePromo inserts a new promo code.
func (r *Repository) CreatePromo(ctx context.Context, p PromoCode) (PromoCode, error) {
	return scanPromo(r.pool.QueryRow(ctx, `
		INSERT INTO promo_codes (code, discount_type, discount_value, max_total_uses, max_uses_per_prospect, valid_from, valid_until, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+promoColumns,
		p.Code, p.DiscountType, p.DiscountValue, p.MaxTotalUses,
		p.MaxUsesPerProspect, p.ValidFrom, p.ValidUntil, p.IsActive,
	))
}

// GetPromoByCode retrieves an active promo code valid at the given time.
func (r *Repository) GetPromoByCode(ctx context.Context, code string, at time.Time) (PromoCode, error) {
	return scanPromo(r.pool.QueryRow(ctx, `
		SELECT `+promoColumns+` FROM promo_codes
		WHERE code = $1 AND is_active
		  AND (valid_from IS NULL OR valid_from <= $2)
		  AND (valid_until IS NULL OR valid_until >= $2)
	`, code, at))
}

// ListPromos returns all promo codes.
func (r *Repository) ListPromos(ctx context.Context) ([]PromoCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// RedeemPromo records one usage of the code for a completed payment. The
// unique payment_id constraint makes the call idempotent: a repeated webhook
// for the same payment reports alreadyRedeemed instead of double counting.
// The conditional used_count increment enforces the total usage limit without
// a read-modify-write race.
func (r *Repository) RedeemPromo(ctx context.Context, promoID, prospectID, paymentID uuid.UUID) (redeemed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var perProspect, maxPerProspect int
	err = tx.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM promo_usages WHERE promo_code_id = $1 AND prospect_id = $2),
			(SELECT max_uses_per_prospect FROM promo_codes WHERE id = $1)
	`, promoID, prospectID).Scan(&perProspect, &maxPerProspect)
	if err != nil {
		return false, err
	}
	if maxPerProspect > 0 && perProspect >= maxPerProspect {
		return false, ErrPromoExhausted
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO promo_usages (promo_code_id, prospect_id, payment_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_id) DO NOTHING
	`, promoID, prospectID, paymentID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// already redeemed for this payment
		return false, tx.Commit(ctx)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE id = $1 AND (max_total_uses = 0 OR used_count < max_total_uses)
	`, promoID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, ErrPromoExhausted
	}

	return true, tx.Commit(ctx)
}
