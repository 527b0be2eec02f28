// Package handler exposes payment, webhook, and promo code endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coachflow_backend/internal/payments/service"
	"coachflow_backend/internal/payments/transport"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid payment id"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new payments handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// CreatePayment registers an expected payment.
// POST /api/v1/payments
func (h *Handler) CreatePayment(c *gin.Context) {
	var req transport.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreatePayment(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// GetPayment retrieves one payment.
// GET /api/v1/payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetPayment(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListProspectPayments retrieves a prospect's payments.
// GET /api/v1/prospects/:id/payments
func (h *Handler) ListProspectPayments(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.ListByProspect(c.Request.Context(), prospectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Webhook ingests a provider push notification. The response is always a
// generic 200 acknowledgement so the provider neither retries forever nor
// learns anything about internal payment state.
// POST /api/v1/payments/webhook
func (h *Handler) Webhook(c *gin.Context) {
	var req transport.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.OK(c, gin.H{"received": true})
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), req.ExternalID(), req.RawStatus()); err != nil {
		// acknowledged anyway; reconciliation converges the state later
		httpkit.OK(c, gin.H{"received": true})
		return
	}
	httpkit.OK(c, gin.H{"received": true})
}

// Reconcile triggers an immediate reconciliation sweep.
// POST /api/v1/payments/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	// The body is optional; an omitted limit falls back to the service default.
	var req transport.ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	checked, updated, err := h.svc.ReconcilePending(c.Request.Context(), req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ReconcileResponse{Checked: checked, Updated: updated})
}

// ConfirmManual marks a payment completed on the operator's word.
// POST /api/v1/payments/:id/confirm
func (h *Handler) ConfirmManual(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.ConfirmManual(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreatePromo registers a new promo code.
// POST /api/v1/promos
func (h *Handler) CreatePromo(c *gin.Context) {
	var req transport.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.CreatePromo(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// ListPromos retrieves all promo codes.
// GET /api/v1/promos
func (h *Handler) ListPromos(c *gin.Context) {
	result, err := h.svc.ListPromos(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
