package scheduler

import (
	"context"
	"fmt"
	"time"

	"metagapura_portal_backend/internal/campaigns/service"
	"metagapura_portal_backend/internal/campaigns/transport"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// DraftCleaner is the slice of the campaigns service the worker needs.
type DraftCleaner interface {
	Cleanup(ctx context.Context) (transport.CleanupResponse, error)
}

// Worker consumes the maintenance queue and runs a periodic schedule that
// feeds it: draft cleanup is enqueued every DraftCleanupInterval.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	cleaner   DraftCleaner
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, cleaner DraftCleaner, log *logger.Logger) (*Worker, error) {
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

	interval := cfg.GetDraftCleanupInterval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	periodic := asynq.NewScheduler(opt, nil)
	if _, err := periodic.Register(
		fmt.Sprintf("@every %s", interval),
		NewDraftCleanupTask(),
		asynq.Queue(queue),
	); err != nil {
		return nil, fmt.Errorf("register draft cleanup schedule: %w", err)
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		cleaner:   cleaner,
		log:       log,
	}

	mux.HandleFunc(TaskDraftCleanup, w.handleDraftCleanup)

	return w, nil
}

func (w *Worker) handleDraftCleanup(ctx context.Context, _ *asynq.Task) error {
	result, err := w.cleaner.Cleanup(ctx)
	if err != nil {
		return err
	}

	if result.ForceRejected > 0 {
		w.log.Info("draft cleanup completed", "force_rejected", result.ForceRejected)
	}
	return nil
}

// Run blocks until ctx is cancelled, serving the queue and the periodic
// schedule.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

var _ DraftCleaner = (*service.Service)(nil)
