// Package handler exposes campaign, audience, and channel preference
// endpoints.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coachflow_backend/internal/campaigns/dispatch"
	"coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/campaigns/transport"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
	msgCampaignNotFound = "campaign not found"
)

// Handler handles HTTP requests for campaigns.
type Handler struct {
	repo       *repository.Repository
	dispatcher *dispatch.Dispatcher
	val        *validator.Validator
}

// New creates a new campaigns handler.
func New(repo *repository.Repository, dispatcher *dispatch.Dispatcher, val *validator.Validator) *Handler {
	return &Handler{repo: repo, dispatcher: dispatcher, val: val}
}

// CreateCampaign creates a new draft campaign.
// POST /api/v1/campaigns
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req transport.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.repo.CreateCampaign(c.Request.Context(), repository.Campaign{
		Name:     req.Name,
		Channels: req.Channels,
		Params:   req.Params,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toCampaignResponse(created))
}

// GetCampaign retrieves one campaign.
// GET /api/v1/campaigns/:id
func (h *Handler) GetCampaign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	campaign, err := h.repo.GetCampaign(c.Request.Context(), id)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgCampaignNotFound, nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toCampaignResponse(campaign))
}

// ListCampaigns retrieves all campaigns.
// GET /api/v1/campaigns
func (h *Handler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.repo.ListCampaigns(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.CampaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		result = append(result, toCampaignResponse(campaign))
	}
	httpkit.OK(c, result)
}

// SetMessage stores a new message template revision for the campaign.
// PUT /api/v1/campaigns/:id/message
func (h *Handler) SetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.SetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if _, err := h.repo.GetCampaign(c.Request.Context(), id); errors.Is(err, repository.ErrCampaignNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgCampaignNotFound, nil)
		return
	}

	message, err := h.repo.SetMessage(c.Request.Context(), id, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"id": message.ID, "body": message.Body, "createdAt": message.CreatedAt})
}

// Schedule marks a campaign for execution by the sweep.
// POST /api/v1/campaigns/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ScheduleCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err = h.repo.Schedule(c.Request.Context(), id, req.ScheduleAt)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgCampaignNotFound, nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Cancel moves a campaign into the cancelled state.
// POST /api/v1/campaigns/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	err = h.repo.UpdateStatus(c.Request.Context(), id, repository.StatusCancelled)
	if errors.Is(err, repository.ErrCampaignNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgCampaignNotFound, nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// Run executes the campaign now against the given audience.
// POST /api/v1/campaigns/:id/run
func (h *Handler) Run(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	// The body is optional; audience defaults to the whole base and the
	// limit to the configured run limit.
	var req transport.RunCampaignRequest
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

	summary, err := h.dispatcher.StartRun(c.Request.Context(), id, req.AudienceID, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RunSummaryResponse{
		RunID:     summary.RunID,
		Processed: summary.Processed,
		Sent:      summary.Sent,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
	})
}

// Sweep starts runs for due scheduled campaigns immediately instead of
// waiting for the next periodic sweep.
// POST /api/v1/campaigns/sweep
func (h *Handler) Sweep(c *gin.Context) {
	// The body is optional; omitted caps fall back to configuration.
	var req transport.SweepRequest
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

	started, err := h.dispatcher.ProcessScheduled(c.Request.Context(), req.LimitPerRun, req.MaxRuns)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"startedRuns": started})
}

// PlanSchedule previews the send slots for a spread-out run: fixed-step
// assignments adjusted around a quiet window.
// POST /api/v1/campaigns/:id/plan
func (h *Handler) PlanSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.PlanScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if (req.QuietStart == nil) != (req.QuietEnd == nil) {
		httpkit.Error(c, http.StatusBadRequest, "quiet hours need both start and end", nil)
		return
	}

	if _, err := h.repo.GetCampaign(c.Request.Context(), id); errors.Is(err, repository.ErrCampaignNotFound) {
		httpkit.Error(c, http.StatusNotFound, msgCampaignNotFound, nil)
		return
	} else if httpkit.HandleError(c, err) {
		return
	}

	slots := dispatch.SequenceSendTimes(
		req.Start,
		time.Duration(req.StepSeconds)*time.Second,
		req.Count,
		req.QuietStart, req.QuietEnd,
	)
	httpkit.OK(c, transport.PlanScheduleResponse{Slots: slots})
}

// ListRuns retrieves a campaign's run history.
// GET /api/v1/campaigns/:id/runs
func (h *Handler) ListRuns(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	runs, err := h.repo.ListRuns(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.RunResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, transport.RunResponse{
			ID:          run.ID,
			CampaignID:  run.CampaignID,
			AudienceID:  run.AudienceID,
			Status:      run.Status,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			Total:       run.Total,
			Sent:        run.Sent,
			Errors:      run.Errors,
		})
	}
	httpkit.OK(c, result)
}

// ListDeliveries retrieves a run's per-prospect delivery outcomes.
// GET /api/v1/campaigns/:id/runs/:runId/deliveries
func (h *Handler) ListDeliveries(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	deliveries, err := h.repo.ListDeliveries(c.Request.Context(), runID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		result = append(result, transport.DeliveryResponse{
			ID:         d.ID,
			RunID:      d.RunID,
			CampaignID: d.CampaignID,
			ProspectID: d.ProspectID,
			Channel:    d.Channel,
			Status:     d.Status,
			CreatedAt:  d.CreatedAt,
		})
	}
	httpkit.OK(c, result)
}

// CreateAudience stores a saved audience filter.
// POST /api/v1/audiences
func (h *Handler) CreateAudience(c *gin.Context) {
	var req transport.CreateAudienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.repo.CreateAudience(c.Request.Context(), repository.Audience{
		Name:            req.Name,
		StatusFilter:    req.StatusFilter,
		RequireWhatsApp: req.RequireWhatsApp,
		RequireEmail:    req.RequireEmail,
		RequirePhone:    req.RequirePhone,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toAudienceResponse(created))
}

// ListAudiences retrieves all saved audiences.
// GET /api/v1/audiences
func (h *Handler) ListAudiences(c *gin.Context) {
	audiences, err := h.repo.ListAudiences(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.AudienceResponse, 0, len(audiences))
	for _, a := range audiences {
		result = append(result, toAudienceResponse(a))
	}
	httpkit.OK(c, result)
}

// GetPreference retrieves a prospect's channel preference, defaulting to
// all-allowed when none is stored.
// GET /api/v1/prospects/:id/preferences
func (h *Handler) GetPreference(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	pref, err := h.repo.GetPreference(c.Request.Context(), prospectID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPreferenceResponse(pref))
}

// UpsertPreference stores a prospect's channel preference.
// PUT /api/v1/prospects/:id/preferences
func (h *Handler) UpsertPreference(c *gin.Context) {
	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpsertPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if (req.QuietStart == nil) != (req.QuietEnd == nil) {
		httpkit.Error(c, http.StatusBadRequest, "quiet hours need both start and end", nil)
		return
	}

	pref, err := h.repo.UpsertPreference(c.Request.Context(), repository.Preference{
		ProspectID:    prospectID,
		AllowWhatsApp: req.AllowWhatsApp,
		AllowEmail:    req.AllowEmail,
		QuietStart:    req.QuietStart,
		QuietEnd:      req.QuietEnd,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toPreferenceResponse(pref))
}

func toCampaignResponse(c repository.Campaign) transport.CampaignResponse {
	return transport.CampaignResponse{
		ID:         c.ID,
		Name:       c.Name,
		Status:     c.Status,
		Channels:   c.Channels,
		ScheduleAt: c.ScheduleAt,
		Params:     c.Params,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toAudienceResponse(a repository.Audience) transport.AudienceResponse {
	return transport.AudienceResponse{
		ID:              a.ID,
		Name:            a.Name,
		StatusFilter:    a.StatusFilter,
		RequireWhatsApp: a.RequireWhatsApp,
		RequireEmail:    a.RequireEmail,
		RequirePhone:    a.RequirePhone,
		CreatedAt:       a.CreatedAt,
	}
}

func toPreferenceResponse(p repository.Preference) transport.PreferenceResponse {
	return transport.PreferenceResponse{
		ProspectID:    p.ProspectID,
		AllowWhatsApp: p.AllowWhatsApp,
		AllowEmail:    p.AllowEmail,
		QuietStart:    p.QuietStart,
		QuietEnd:      p.QuietEnd,
	}
}
