package scheduler

import (
	"context"
	"fmt"

	"coachflow_backend/internal/campaigns/dispatch"
	paymentsvc "coachflow_backend/internal/payments/service"
	remindersvc "coachflow_backend/internal/reminders/service"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const reconcileBatch = 100

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	payments   *paymentsvc.Service
	dispatcher *dispatch.Dispatcher
	reminders  *remindersvc.Service
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, payments *paymentsvc.Service, dispatcher *dispatch.Dispatcher, reminders *remindersvc.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		payments:   payments,
		dispatcher: dispatcher,
		reminders:  reminders,
		log:        log,
	}

	mux.HandleFunc(TaskPaymentReconcile, w.handlePaymentReconcile)
	mux.HandleFunc(TaskPaymentFulfill, w.handlePaymentFulfill)
	mux.HandleFunc(TaskCampaignSweep, w.handleCampaignSweep)
	mux.HandleFunc(TaskReminderSweep, w.handleReminderSweep)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handlePaymentReconcile(ctx context.Context, _ *asynq.Task) error {
	checked, updated, err := w.payments.ReconcilePending(ctx, reconcileBatch)
	if err != nil {
		return err
	}
	if checked > 0 {
		w.log.Info("payment reconcile finished", "checked", checked, "updated", updated)
	}
	return nil
}

func (w *Worker) handlePaymentFulfill(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaymentFulfillPayload(task)
	if err != nil {
		return err
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		return err
	}

	return w.payments.Fulfill(ctx, paymentID)
}

func (w *Worker) handleCampaignSweep(ctx context.Context, _ *asynq.Task) error {
	started, err := w.dispatcher.ProcessScheduled(ctx, 0, 0)
	if err != nil {
		return err
	}
	if started > 0 {
		w.log.Info("campaign sweep finished", "started", started)
	}
	return nil
}

func (w *Worker) handleReminderSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := w.reminders.Sweep(ctx, 0)
	return err
}
