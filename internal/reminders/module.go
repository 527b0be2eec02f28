// Package reminders provides the follow-up reminder bounded context module.
package reminders

import (
	"coachflow_backend/internal/campaigns/dispatch"
	campaignrepo "coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/events"
	apphttp "coachflow_backend/internal/http"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/internal/reminders/handler"
	"coachflow_backend/internal/reminders/repository"
	"coachflow_backend/internal/reminders/service"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the reminders bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the reminders module. Either sender may
// be nil when the channel is not configured.
func NewModule(pool *pgxpool.Pool, prospects *prospectrepo.Repository, campaigns *campaignrepo.Repository, whatsapp, email dispatch.Sender, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, prospects, campaigns, whatsapp, email, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reminders"
}

// Service returns the service layer for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts reminder routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/reminders", m.handler.Create)
	ctx.Protected.GET("/prospects/:id/reminders", m.handler.ListByProspect)
	ctx.Protected.DELETE("/reminders/:id", m.handler.Cancel)
	ctx.Protected.POST("/reminders/sweep", m.handler.Sweep)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
