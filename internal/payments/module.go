// Package payments provides the payment reconciliation bounded context module.
package payments

import (
	"coachflow_backend/internal/events"
	apphttp "coachflow_backend/internal/http"
	"coachflow_backend/internal/payments/handler"
	"coachflow_backend/internal/payments/provider"
	"coachflow_backend/internal/payments/repository"
	"coachflow_backend/internal/payments/service"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/httpkit"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the payments module. reporter feeds
// completed payments into the pipeline engine; enqueuer may be nil when the
// process runs without the task queue.
func NewModule(pool *pgxpool.Pool, cfg config.PaymentProviderConfig, reporter service.EventReporter, enqueuer service.FulfillmentEnqueuer, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var providerClient service.ProviderClient
	if client := provider.NewClient(cfg, log); client != nil {
		providerClient = client
	}

	svc := service.New(repo, cfg.GetPaymentProviderName(), providerClient, reporter, enqueuer, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// Service returns the service layer for the scheduler worker.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts payment routes on the provided router context.
// The webhook stays on the public group; providers do not carry our JWTs.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/payments/webhook", m.handler.Webhook)

	ctx.Protected.POST("/payments", m.handler.CreatePayment)
	ctx.Protected.GET("/payments/:id", m.handler.GetPayment)
	ctx.Protected.POST("/payments/:id/confirm", m.handler.ConfirmManual)
	ctx.Protected.POST("/payments/reconcile", m.handler.Reconcile)
	ctx.Protected.GET("/prospects/:id/payments", m.handler.ListProspectPayments)

	ctx.Protected.POST("/promos", httpkit.RequireRole("admin"), m.handler.CreatePromo)
	ctx.Protected.GET("/promos", m.handler.ListPromos)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
