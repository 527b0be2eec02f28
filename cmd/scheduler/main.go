package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coachflow_backend/internal/campaigns"
	"coachflow_backend/internal/campaigns/dispatch"
	campaignrepo "coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/email"
	"coachflow_backend/internal/events"
	"coachflow_backend/internal/payments"
	"coachflow_backend/internal/pipeline"
	pipelinerepo "coachflow_backend/internal/pipeline/repository"
	"coachflow_backend/internal/prospects"
	"coachflow_backend/internal/reminders"
	"coachflow_backend/internal/scheduler"
	"coachflow_backend/internal/whatsapp"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/db"
	"coachflow_backend/platform/logger"
	"coachflow_backend/platform/validator"
)

// The scheduler binary runs the asynq worker plus the periodic task cron.
// It shares the composition of the API process but registers no HTTP routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.NewPool(connectCtx, cfg)
	cancel()
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	whatsappClient := whatsapp.NewClient(cfg, log)
	emailSender := email.NewSMTPSender(cfg)

	senders := map[string]dispatch.Sender{}
	if whatsappClient != nil {
		senders[campaignrepo.ChannelWhatsApp] = whatsappClient
	}
	if emailSender != nil {
		senders[campaignrepo.ChannelEmail] = emailSender
	}

	enqueuer, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer enqueuer.Close()

	prospectsModule := prospects.NewModule(pool, pipelinerepo.New(pool), val, log)
	pipelineModule := pipeline.NewModule(pool, prospectsModule.Repository(), eventBus, val, log)
	campaignsModule := campaigns.NewModule(pool, prospectsModule.Repository(), senders, cfg, eventBus, val, log)
	paymentsModule := payments.NewModule(pool, cfg, pipelineModule.Engine(), enqueuer, eventBus, val, log)
	remindersModule := reminders.NewModule(pool, prospectsModule.Repository(), campaignsModule.Repository(),
		senders[campaignrepo.ChannelWhatsApp], senders[campaignrepo.ChannelEmail], eventBus, val, log)

	worker, err := scheduler.NewWorker(cfg, paymentsModule.Service(), campaignsModule.Dispatcher(), remindersModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	cron, err := scheduler.NewCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize cron", "error", err)
		panic("failed to initialize cron: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		cron.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping scheduler")
	wg.Wait()
}
