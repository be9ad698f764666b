// Package watch wraps campaign state polling in a cancellable subscription.
// Callers never write their own polling loops; they subscribe with a
// callback and hold on to the returned stop function.
package watch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"metagapura_portal_backend/internal/campaigns/domain"
	"metagapura_portal_backend/platform/config"
	"metagapura_portal_backend/platform/logger"
)

// StateSource resolves the current lifecycle state of a campaign.
type StateSource interface {
	ResolveState(ctx context.Context, campaignID uuid.UUID) domain.State
}

// Watcher owns the polling cadence. Each subscription polls fast for an
// initial burst window (the operator just acted and expects movement), then
// backs off to the slower steady-state interval.
type Watcher struct {
	source          StateSource
	pollInterval    time.Duration
	burstWindow     time.Duration
	backoffInterval time.Duration
	log             *logger.Logger
}

func New(source StateSource, cfg config.WatchConfig, log *logger.Logger) *Watcher {
	pollInterval := cfg.GetPollInterval()
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	backoffInterval := cfg.GetPollBackoffInterval()
	if backoffInterval < pollInterval {
		backoffInterval = pollInterval
	}

	return &Watcher{
		source:          source,
		pollInterval:    pollInterval,
		burstWindow:     cfg.GetPollBurstWindow(),
		backoffInterval: backoffInterval,
		log:             log,
	}
}

// Subscribe starts polling the campaign's state and invokes onState for the
// initial state and every change after it. The returned function stops the
// loop; it is safe to call more than once.
func (w *Watcher) Subscribe(ctx context.Context, campaignID uuid.UUID, onState func(domain.State)) func() {
	ctx, cancel := context.WithCancel(ctx)

	go w.run(ctx, campaignID, onState)

	return cancel
}

func (w *Watcher) run(ctx context.Context, campaignID uuid.UUID, onState func(domain.State)) {
	started := time.Now()

	last := w.source.ResolveState(ctx, campaignID)
	onState(last)

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		state := w.source.ResolveState(ctx, campaignID)
		if state != last {
			last = state
			onState(state)
		}

		interval := w.pollInterval
		if w.burstWindow > 0 && time.Since(started) > w.burstWindow {
			interval = w.backoffInterval
		}
		timer.Reset(interval)
	}
}
