package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/infra/metrics"
)

const expiryLockKey = "jobs:expiry"

// Expirer is the slice of the subscription store the expiry worker needs.
type Expirer interface {
	FinishExpired(ctx context.Context) (int, error)
}

// ExpiryWorker periodically finishes subscriptions whose paid window has
// lapsed. The transition itself is idempotent, so the lock here only avoids
// duplicate scans, not correctness problems.
type ExpiryWorker struct {
	interval time.Duration
	lockTTL  time.Duration
	subs     Expirer
	locker   adapter.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval, lockTTL time.Duration, subs Expirer, locker adapter.Locker, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &ExpiryWorker{
		interval: interval,
		lockTTL:  lockTTL,
		subs:     subs,
		locker:   locker,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, expiryLockKey, w.lockTTL)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry lock error")
		return
	}
	if token == "" {
		metrics.IncJobLock("expiry", "skipped")
		return
	}
	metrics.IncJobLock("expiry", "acquired")
	defer func() {
		if err := w.locker.Unlock(ctx, expiryLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("expiry lock release failed")
		}
	}()

	n, err := w.subs.FinishExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expired subscriptions finished")
	}
}
