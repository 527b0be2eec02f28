package scheduler

import (
	"context"
	"fmt"

	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron registers the recurring sweep tasks on their configured intervals.
// It runs alongside the worker in the scheduler process.
type Cron struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
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

	sched := asynq.NewScheduler(opt, nil)

	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{fmt.Sprintf("@every %s", cfg.GetReconcileInterval()), NewPaymentReconcileTask()},
		{fmt.Sprintf("@every %s", cfg.GetCampaignSweepInterval()), NewCampaignSweepTask()},
		{fmt.Sprintf("@every %s", cfg.GetReminderInterval()), NewReminderSweepTask()},
	}
	for _, e := range entries {
		if _, err := sched.Register(e.spec, e.task, asynq.Queue(queue)); err != nil {
			return nil, fmt.Errorf("register %s: %w", e.task.Type(), err)
		}
	}

	return &Cron{scheduler: sched, log: log}, nil
}

func (c *Cron) Run(ctx context.Context) {
	if c == nil || c.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		c.scheduler.Shutdown()
	}()

	if err := c.scheduler.Run(); err != nil {
		c.log.Error("cron scheduler stopped", "error", err)
	}
}
