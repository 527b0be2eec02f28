// Package handler exposes pipeline endpoints: event submission, the funnel
// directory, and per-prospect ledgers.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coachflow_backend/internal/pipeline/domain"
	"coachflow_backend/internal/pipeline/engine"
	"coachflow_backend/internal/pipeline/repository"
	"coachflow_backend/internal/pipeline/transport"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
	msgUnknownEventType = "unknown event type"
)

// Handler handles HTTP requests for the pipeline module.
type Handler struct {
	engine *engine.Engine
	repo   *repository.Repository
	val    *validator.Validator
}

// New creates a new pipeline handler.
func New(eng *engine.Engine, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{engine: eng, repo: repo, val: val}
}

// SubmitEvent records a client event and runs the automation rules against it.
// POST /api/v1/events
func (h *Handler) SubmitEvent(c *gin.Context) {
	var req transport.SubmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	eventType, ok := domain.ParseEventType(req.EventType)
	if !ok {
		httpkit.Error(c, http.StatusBadRequest, msgUnknownEventType, req.EventType)
		return
	}

	in := engine.HandleEventInput{
		ProspectID:            req.ProspectID,
		EventType:             eventType,
		Description:           req.Description,
		ActorID:               httpkit.GetUserID(c),
		FollowUpOverrideHours: req.FollowUpHours,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	result, err := h.engine.HandleEvent(c.Request.Context(), in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.SubmitEventResponse{
		StageChanged:  result.StageChanged,
		NewStage:      result.NewStage,
		AppliedRule:   result.AppliedRule,
		NextContactAt: result.NextContactAt,
	})
}

// ListFunnels retrieves all funnels.
// GET /api/v1/funnels
func (h *Handler) ListFunnels(c *gin.Context) {
	funnels, err := h.repo.ListFunnels(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.FunnelResponse, 0, len(funnels))
	for _, f := range funnels {
		result = append(result, transport.FunnelResponse{
			ID: f.ID, Name: f.Name, IsActive: f.IsActive, CreatedAt: f.CreatedAt,
		})
	}
	httpkit.OK(c, result)
}

// ListStages retrieves a funnel's active stages in order.
// GET /api/v1/funnels/:id/stages
func (h *Handler) ListStages(c *gin.Context) {
	funnelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	stages, err := h.repo.ListStages(c.Request.Context(), funnelID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.StageResponse, 0, len(stages))
	for _, s := range stages {
		result = append(result, transport.StageResponse{
			ID: s.ID, FunnelID: s.FunnelID, Name: s.Name, Order: s.Order, IsActive: s.IsActive,
		})
	}
	httpkit.OK(c, result)
}

// ListProspectEvents retrieves a prospect's event ledger, newest first.
// GET /api/v1/prospects/:id/events
func (h *Handler) ListProspectEvents(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	events, err := h.repo.ListEvents(c.Request.Context(), prospectID, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.ClientEventResponse, 0, len(events))
	for _, e := range events {
		result = append(result, transport.ClientEventResponse{
			ID:          e.ID,
			ProspectID:  e.ProspectID,
			EventType:   string(e.Type),
			Description: e.Description,
			ActorID:     e.ActorID,
			OccurredAt:  e.OccurredAt,
			CreatedAt:   e.CreatedAt,
		})
	}
	httpkit.OK(c, result)
}

// ListProspectHistory retrieves a prospect's stage transitions, newest first.
// GET /api/v1/prospects/:id/history
func (h *Handler) ListProspectHistory(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	history, err := h.repo.ListHistory(c.Request.Context(), prospectID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.StageHistoryResponse, 0, len(history))
	for _, entry := range history {
		result = append(result, transport.StageHistoryResponse{
			ID:         entry.ID,
			ProspectID: entry.ProspectID,
			StageID:    entry.StageID,
			FunnelID:   entry.FunnelID,
			MovedAt:    entry.MovedAt,
			MovedBy:    entry.MovedBy,
			Notes:      entry.Notes,
		})
	}
	httpkit.OK(c, result)
}

// ListRules exposes the active rule table for operator tooling.
// GET /api/v1/pipeline/rules
func (h *Handler) ListRules(c *gin.Context) {
	result := make([]transport.RuleResponse, 0, len(domain.DefaultRules))
	for _, rule := range domain.DefaultRules {
		triggers := make([]string, 0, len(rule.Triggers))
		for _, trigger := range rule.Triggers {
			triggers = append(triggers, string(trigger))
		}
		result = append(result, transport.RuleResponse{
			Name:          rule.Name,
			Triggers:      triggers,
			FromStage:     rule.FromStage,
			MinFromOrder:  rule.MinFromOrder,
			ToStage:       rule.ToStage,
			FollowUpHours: rule.FollowUpHours,
		})
	}
	httpkit.OK(c, result)
}
