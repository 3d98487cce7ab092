//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain/model"
)

type stubLocker struct {
	mu       sync.Mutex
	held     bool
	tryErr   error
	unlocked []string
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tryErr != nil {
		return "", l.tryErr
	}
	if l.held {
		return "", nil
	}
	l.held = true
	return "tok-" + key, nil
}

func (l *stubLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.unlocked = append(l.unlocked, key)
	return nil
}

type stubRenewer struct {
	mu      sync.Mutex
	due     []*model.Subscription
	dueErr  error
	renewed []string
	failIDs map[string]bool
}

func (r *stubRenewer) DueRenewals(ctx context.Context, now time.Time, horizon time.Duration) ([]*model.Subscription, error) {
	return r.due, r.dueErr
}

func (r *stubRenewer) RenewSubscription(ctx context.Context, now time.Time, sub *model.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[sub.ID] {
		return errors.New("charge declined")
	}
	r.renewed = append(r.renewed, sub.ID)
	return nil
}

type stubExpirer struct {
	n     int
	err   error
	calls int
}

func (e *stubExpirer) FinishExpired(ctx context.Context) (int, error) {
	e.calls++
	return e.n, e.err
}

func schedTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func dueSubs(ids ...string) []*model.Subscription {
	out := make([]*model.Subscription, 0, len(ids))
	for _, id := range ids {
		bk := "bkey-" + id
		out = append(out, &model.Subscription{
			ID:           id,
			UserID:       "user-" + id,
			Status:       model.SubscriptionStatusActive,
			BillingCycle: model.BillingCycleMonthly,
			BillingKey:   &bk,
			AutoRenew:    true,
		})
	}
	return out
}

func TestRenewalWorkerTick(t *testing.T) {
	ctx := context.Background()

	t.Run("charges every due subscription and releases the lock", func(t *testing.T) {
		locker := &stubLocker{}
		renewer := &stubRenewer{due: dueSubs("a", "b", "c")}
		w := NewRenewalWorker(time.Hour, 24*time.Hour, time.Minute, renewer, locker, schedTestLogger())

		w.tick(ctx)

		if len(renewer.renewed) != 3 {
			t.Fatalf("expected 3 renewals, got %d", len(renewer.renewed))
		}
		if locker.held {
			t.Error("lock must be released after the tick")
		}
		if len(locker.unlocked) != 1 || locker.unlocked[0] != renewalLockKey {
			t.Errorf("unexpected unlock calls %v", locker.unlocked)
		}
	})

	t.Run("one failed charge does not stop the batch", func(t *testing.T) {
		locker := &stubLocker{}
		renewer := &stubRenewer{due: dueSubs("a", "b", "c"), failIDs: map[string]bool{"b": true}}
		w := NewRenewalWorker(time.Hour, 24*time.Hour, time.Minute, renewer, locker, schedTestLogger())

		w.tick(ctx)

		if len(renewer.renewed) != 2 {
			t.Fatalf("expected 2 successful renewals, got %d", len(renewer.renewed))
		}
	})

	t.Run("skips the tick when the lock is held elsewhere", func(t *testing.T) {
		locker := &stubLocker{held: true}
		renewer := &stubRenewer{due: dueSubs("a")}
		w := NewRenewalWorker(time.Hour, 24*time.Hour, time.Minute, renewer, locker, schedTestLogger())

		w.tick(ctx)

		if len(renewer.renewed) != 0 {
			t.Error("a held lock must skip the batch entirely")
		}
		if len(locker.unlocked) != 0 {
			t.Error("a skipped tick must not unlock")
		}
	})

	t.Run("listing failure releases the lock", func(t *testing.T) {
		locker := &stubLocker{}
		renewer := &stubRenewer{dueErr: errors.New("db down")}
		w := NewRenewalWorker(time.Hour, 24*time.Hour, time.Minute, renewer, locker, schedTestLogger())

		w.tick(ctx)

		if locker.held {
			t.Error("lock must be released on batch error")
		}
	})
}

func TestExpiryWorkerTick(t *testing.T) {
	ctx := context.Background()

	t.Run("finishes expired subscriptions under the lock", func(t *testing.T) {
		locker := &stubLocker{}
		expirer := &stubExpirer{n: 2}
		w := NewExpiryWorker(time.Hour, time.Minute, expirer, locker, schedTestLogger())

		w.tick(ctx)

		if expirer.calls != 1 {
			t.Fatalf("expected one sweep, got %d", expirer.calls)
		}
		if locker.held {
			t.Error("lock must be released after the tick")
		}
	})

	t.Run("skips when the lock is held elsewhere", func(t *testing.T) {
		locker := &stubLocker{held: true}
		expirer := &stubExpirer{}
		w := NewExpiryWorker(time.Hour, time.Minute, expirer, locker, schedTestLogger())

		w.tick(ctx)

		if expirer.calls != 0 {
			t.Error("a held lock must skip the sweep")
		}
	})

	t.Run("a sweep error still releases the lock", func(t *testing.T) {
		locker := &stubLocker{}
		expirer := &stubExpirer{err: errors.New("db down")}
		w := NewExpiryWorker(time.Hour, time.Minute, expirer, locker, schedTestLogger())

		w.tick(ctx)

		if locker.held {
			t.Error("lock must be released even when the sweep fails")
		}
	})
}

func TestRenewalWorkerRunStops(t *testing.T) {
	locker := &stubLocker{}
	renewer := &stubRenewer{}
	w := NewRenewalWorker(time.Hour, 24*time.Hour, time.Minute, renewer, locker, schedTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
