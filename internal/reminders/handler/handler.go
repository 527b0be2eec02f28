// Package handler exposes reminder endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coachflow_backend/internal/reminders/repository"
	"coachflow_backend/internal/reminders/service"
	"coachflow_backend/internal/reminders/transport"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for reminders.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new reminders handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Create schedules a reminder.
// POST /api/v1/reminders
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	rem, err := h.svc.Schedule(c.Request.Context(), req.ProspectID, req.ReminderType, req.Message, req.ScheduledAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toResponse(rem))
}

// ListByProspect retrieves a prospect's reminders.
// GET /api/v1/prospects/:id/reminders
func (h *Handler) ListByProspect(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	reminders, err := h.svc.ListByProspect(c.Request.Context(), prospectID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.ReminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		result = append(result, toResponse(rem))
	}
	httpkit.OK(c, result)
}

// Cancel deletes a reminder.
// DELETE /api/v1/reminders/:id
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Sweep triggers an immediate reminder sweep.
// POST /api/v1/reminders/sweep
func (h *Handler) Sweep(c *gin.Context) {
	result, err := h.svc.Sweep(c.Request.Context(), 0)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SweepResponse{
		Due:      result.Due,
		Sent:     result.Sent,
		Deferred: result.Deferred,
		Failed:   result.Failed,
	})
}

func toResponse(rem repository.Reminder) transport.ReminderResponse {
	return transport.ReminderResponse{
		ID:           rem.ID,
		ProspectID:   rem.ProspectID,
		ReminderType: rem.ReminderType,
		Message:      rem.Message,
		ScheduledAt:  rem.ScheduledAt,
		SentAt:       rem.SentAt,
		IsSent:       rem.IsSent,
		CreatedAt:    rem.CreatedAt,
	}
}
