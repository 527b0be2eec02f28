// Package campaigns provides the campaign dispatch bounded context module.
package campaigns

import (
	"coachflow_backend/internal/campaigns/dispatch"
	"coachflow_backend/internal/campaigns/handler"
	"coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/events"
	apphttp "coachflow_backend/internal/http"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the campaigns bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	dispatcher *dispatch.Dispatcher
	repo       *repository.Repository
}

// NewModule creates and initializes the campaigns module.
func NewModule(pool *pgxpool.Pool, prospects *prospectrepo.Repository, senders map[string]dispatch.Sender, cfg config.CampaignConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	dispatcher := dispatch.New(repo, prospects, senders, cfg, bus, log)
	h := handler.New(repo, dispatcher, val)

	return &Module{
		handler:    h,
		dispatcher: dispatcher,
		repo:       repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// Dispatcher returns the dispatch engine for the scheduler worker.
func (m *Module) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

// Repository returns the repository for other modules.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts campaign routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/campaigns", m.handler.CreateCampaign)
	ctx.Protected.GET("/campaigns", m.handler.ListCampaigns)
	ctx.Protected.GET("/campaigns/:id", m.handler.GetCampaign)
	ctx.Protected.PUT("/campaigns/:id/message", m.handler.SetMessage)
	ctx.Protected.POST("/campaigns/:id/schedule", m.handler.Schedule)
	ctx.Protected.POST("/campaigns/:id/cancel", m.handler.Cancel)
	ctx.Protected.POST("/campaigns/:id/run", m.handler.Run)
	ctx.Protected.POST("/campaigns/:id/plan", m.handler.PlanSchedule)
	ctx.Protected.POST("/campaigns/sweep", m.handler.Sweep)
	ctx.Protected.GET("/campaigns/:id/runs", m.handler.ListRuns)
	ctx.Protected.GET("/campaigns/:id/runs/:runId/deliveries", m.handler.ListDeliveries)

	ctx.Protected.POST("/audiences", m.handler.CreateAudience)
	ctx.Protected.GET("/audiences", m.handler.ListAudiences)

	ctx.Protected.GET("/prospects/:id/preferences", m.handler.GetPreference)
	ctx.Protected.PUT("/prospects/:id/preferences", m.handler.UpsertPreference)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
