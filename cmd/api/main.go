package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachflow_backend/internal/campaigns"
	"coachflow_backend/internal/campaigns/dispatch"
	campaignrepo "coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/email"
	"coachflow_backend/internal/events"
	apphttp "coachflow_backend/internal/http"
	"coachflow_backend/internal/http/router"
	"coachflow_backend/internal/payments"
	paymentsvc "coachflow_backend/internal/payments/service"
	"coachflow_backend/internal/pipeline"
	pipelinerepo "coachflow_backend/internal/pipeline/repository"
	"coachflow_backend/internal/prospects"
	"coachflow_backend/internal/reminders"
	"coachflow_backend/internal/scheduler"
	"coachflow_backend/internal/whatsapp"
	"coachflow_backend/migrations"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/db"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Outbound channels. Either may be nil when not configured; the dispatch
	// layer treats a missing sender as channel-unavailable.
	whatsappClient := whatsapp.NewClient(cfg, log)
	emailSender := email.NewSMTPSender(cfg)

	senders := map[string]dispatch.Sender{}
	if whatsappClient != nil {
		senders[campaignrepo.ChannelWhatsApp] = whatsappClient
	}
	if emailSender != nil {
		senders[campaignrepo.ChannelEmail] = emailSender
	}

	fulfillmentEnqueuer, closeEnqueuer := initFulfillmentEnqueuer(cfg, log)
	if closeEnqueuer != nil {
		defer closeEnqueuer()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	prospectsModule := prospects.NewModule(pool, pipelinerepo.New(pool), val, log)
	pipelineModule := pipeline.NewModule(pool, prospectsModule.Repository(), eventBus, val, log)
	campaignsModule := campaigns.NewModule(pool, prospectsModule.Repository(), senders, cfg, eventBus, val, log)

	// Completed payments feed the automation engine through its event input.
	paymentsModule := payments.NewModule(pool, cfg, pipelineModule.Engine(), fulfillmentEnqueuer, eventBus, val, log)

	remindersModule := reminders.NewModule(pool, prospectsModule.Repository(), campaignsModule.Repository(),
		senders[campaignrepo.ChannelWhatsApp], senders[campaignrepo.ChannelEmail], eventBus, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			prospectsModule,
			pipelineModule,
			campaignsModule,
			paymentsModule,
			remindersModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initFulfillmentEnqueuer(cfg config.SchedulerConfig, log *logger.Logger) (paymentsvc.FulfillmentEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; asynchronous fulfillment disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
