package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreatePaymentRequest struct {
	ProspectID uuid.UUID `json:"prospectId" validate:"required"`
	Amount     int64     `json:"amount" validate:"required,min=1"`
	Currency   string    `json:"currency" validate:"omitempty,len=3"`
	Kind       string    `json:"kind" validate:"omitempty,oneof=program consultation other"`
	ExternalID string    `json:"externalId" validate:"omitempty,max=255"`
	PromoCode  string    `json:"promoCode" validate:"omitempty,max=100"`
}

type PaymentResponse struct {
	ID          uuid.UUID         `json:"id"`
	ProspectID  uuid.UUID         `json:"prospectId"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	ExternalID  string            `json:"externalId"`
	PromoCodeID *uuid.UUID        `json:"promoCodeId,omitempty"`
	Discount    int64             `json:"discount"`
	FinalAmount int64             `json:"finalAmount"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	FulfilledAt *time.Time        `json:"fulfilledAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// WebhookRequest is the provider's push notification shape. Both YooKassa's
// nested object form and a flat form are accepted.
type WebhookRequest struct {
	Event  string `json:"event"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"object"`
}

// ExternalID returns the payment identifier regardless of webhook shape.
func (w WebhookRequest) ExternalID() string {
	if w.Object.ID != "" {
		return w.Object.ID
	}
	return w.ID
}

// RawStatus returns the provider status regardless of webhook shape.
func (w WebhookRequest) RawStatus() string {
	if w.Object.Status != "" {
		return w.Object.Status
	}
	return w.Status
}

type ReconcileRequest struct {
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=10000"`
}

type ReconcileResponse struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}

type CreatePromoRequest struct {
	Code               string     `json:"code" validate:"required,min=1,max=100"`
	DiscountType       string     `json:"discountType" validate:"required,oneof=fixed percent"`
	DiscountValue      int64      `json:"discountValue" validate:"required,min=1"`
	MaxTotalUses       int        `json:"maxTotalUses" validate:"min=0"`
	MaxUsesPerProspect int        `json:"maxUsesPerProspect" validate:"min=0"`
	ValidFrom          *time.Time `json:"validFrom,omitempty"`
	ValidUntil         *time.Time `json:"validUntil,omitempty"`
}

type PromoResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Code               string     `json:"code"`
	DiscountType       string     `json:"discountType"`
	DiscountValue      int64      `json:"discountValue"`
	MaxTotalUses       int        `json:"maxTotalUses"`
	MaxUsesPerProspect int        `json:"maxUsesPerProspect"`
	UsedCount          int        `json:"usedCount"`
	ValidFrom          *time.Time `json:"validFrom,omitempty"`
	ValidUntil         *time.Time `json:"validUntil,omitempty"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"`
}
