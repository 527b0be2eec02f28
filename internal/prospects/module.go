// Package prospects provides the prospect management bounded context module.
package prospects

import (
	apphttp "coachflow_backend/internal/http"
	"coachflow_backend/internal/prospects/handler"
	"coachflow_backend/internal/prospects/repository"
	"coachflow_backend/internal/prospects/service"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the prospects bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the prospects module.
func NewModule(pool *pgxpool.Pool, stages service.StageDirectory, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, stages, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "prospects"
}

// Repository returns the repository for other modules (engine, audiences).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts prospect routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/prospects", m.handler.Create)
	ctx.Protected.GET("/prospects", m.handler.List)
	ctx.Protected.GET("/prospects/:id", m.handler.GetByID)
	ctx.Protected.PATCH("/prospects/:id", m.handler.Update)
	ctx.Protected.DELETE("/prospects/:id", httpkit.RequireRole("admin"), m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
