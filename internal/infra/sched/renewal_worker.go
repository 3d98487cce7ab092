package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/infra/metrics"
	"studycard-subscription/internal/infra/worker"
)

const renewalLockKey = "jobs:renewal"

// Renewer is the slice of the checkout orchestrator the renewal worker needs.
type Renewer interface {
	DueRenewals(ctx context.Context, now time.Time, horizon time.Duration) ([]*model.Subscription, error)
	RenewSubscription(ctx context.Context, now time.Time, sub *model.Subscription) error
}

// RenewalWorker periodically charges billing keys for subscriptions that are
// inside the renewal horizon. A redis lock keeps replicas from running the
// batch concurrently; losing the lock means another instance has this tick.
// Charges within one tick run through a bounded pool so a slow gateway call
// does not serialize the whole batch.
type RenewalWorker struct {
	interval time.Duration
	horizon  time.Duration
	lockTTL  time.Duration
	checkout Renewer
	locker   adapter.Locker
	pool     *worker.Pool
	log      *zerolog.Logger
}

func NewRenewalWorker(interval, horizon, lockTTL time.Duration, checkout Renewer, locker adapter.Locker, logger *zerolog.Logger) *RenewalWorker {
	rnwLog := logger.With().Str("component", "RenewalWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &RenewalWorker{
		interval: interval,
		horizon:  horizon,
		lockTTL:  lockTTL,
		checkout: checkout,
		locker:   locker,
		pool:     worker.NewPool(4),
		log:      &rnwLog,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting renewal worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RenewalWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, renewalLockKey, w.lockTTL)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal lock error")
		return
	}
	if token == "" {
		metrics.IncJobLock("renewal", "skipped")
		w.log.Debug().Msg("renewal lock held elsewhere, skipping tick")
		return
	}
	metrics.IncJobLock("renewal", "acquired")
	defer func() {
		if err := w.locker.Unlock(ctx, renewalLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("renewal lock release failed")
		}
	}()

	now := time.Now()
	due, err := w.checkout.DueRenewals(ctx, now, w.horizon)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal batch error")
		return
	}
	if len(due) == 0 {
		return
	}

	tasks := make([]worker.Task, 0, len(due))
	for _, sub := range due {
		sub := sub
		tasks = append(tasks, func(ctx context.Context) error {
			return w.checkout.RenewSubscription(ctx, now, sub)
		})
	}
	n := w.pool.Run(ctx, tasks)
	w.log.Info().Int("due", len(due)).Int("renewed", n).Msg("renewal batch finished")
}
