// Package pipeline provides the pipeline bounded context module: the event
// ledger, the funnel directory, and the stage automation engine.
package pipeline

import (
	"coachflow_backend/internal/events"
	apphttp "coachflow_backend/internal/http"
	"coachflow_backend/internal/pipeline/domain"
	"coachflow_backend/internal/pipeline/engine"
	"coachflow_backend/internal/pipeline/handler"
	"coachflow_backend/internal/pipeline/repository"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pipeline bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	engine  *engine.Engine
	repo    *repository.Repository
}

// NewModule creates and initializes the pipeline module.
func NewModule(pool *pgxpool.Pool, prospects *prospectrepo.Repository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	eng := engine.New(prospects, repo, domain.DefaultRules, bus, log)
	h := handler.New(eng, repo, val)

	return &Module{
		handler: h,
		engine:  eng,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pipeline"
}

// Engine returns the automation engine for other modules to report events into.
func (m *Module) Engine() *engine.Engine {
	return m.engine
}

// Repository returns the pipeline repository for direct access if needed.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/events", m.handler.SubmitEvent)
	ctx.Protected.GET("/funnels", m.handler.ListFunnels)
	ctx.Protected.GET("/funnels/:id/stages", m.handler.ListStages)
	ctx.Protected.GET("/prospects/:id/events", m.handler.ListProspectEvents)
	ctx.Protected.GET("/prospects/:id/history", m.handler.ListProspectHistory)
	ctx.Protected.GET("/pipeline/rules", m.handler.ListRules)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
