//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/infra/security"
)

func newTestCipher(t *testing.T) *security.BillingKeyCipher {
	t.Helper()
	c, err := security.NewBillingKeyCipher("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	return c
}

func newActiveSubscription(t *testing.T, userID, billingKey string) *model.Subscription {
	t.Helper()
	s, err := model.NewPendingSubscription(uuid.NewString(), userID, "cus_"+userID, model.PlanPro, model.BillingCycleMonthly)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if err := s.Activate(time.Now()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if billingKey != "" {
		s.BillingKey = &billingKey
	}
	return s
}

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	cipher := newTestCipher(t)
	repo := NewSubscriptionRepo(testPool, cipher)

	t.Run("billing key round trips encrypted", func(t *testing.T) {
		cleanup(t)
		s := newActiveSubscription(t, "user-1", "bkey_secret_123")
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("save: %v", err)
		}

		// The stored column must never hold the plaintext.
		var stored *string
		if err := testPool.QueryRow(ctx, `SELECT billing_key FROM subscriptions WHERE id=$1`, s.ID).Scan(&stored); err != nil {
			t.Fatalf("raw select: %v", err)
		}
		if stored == nil || *stored == "bkey_secret_123" {
			t.Fatal("billing key must be stored encrypted")
		}

		got, err := repo.FindByID(ctx, nil, s.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.BillingKey == nil || *got.BillingKey != "bkey_secret_123" {
			t.Errorf("billing key did not decrypt on read: %+v", got.BillingKey)
		}
	})

	t.Run("FindByBillingKey resolves through the digest column", func(t *testing.T) {
		cleanup(t)
		s := newActiveSubscription(t, "user-1", "bkey_lookup")
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := repo.FindByBillingKey(ctx, nil, "bkey_lookup")
		if err != nil {
			t.Fatalf("FindByBillingKey: %v", err)
		}
		if got.ID != s.ID {
			t.Errorf("resolved the wrong row %s", got.ID)
		}
		if _, err := repo.FindByBillingKey(ctx, nil, "bkey_other"); err != domain.ErrSubscriptionNotFound {
			t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
		}
	})

	t.Run("one active subscription per user", func(t *testing.T) {
		cleanup(t)
		first := newActiveSubscription(t, "user-1", "")
		if err := repo.Save(ctx, nil, first); err != nil {
			t.Fatalf("save first: %v", err)
		}
		second := newActiveSubscription(t, "user-1", "")
		if err := repo.Save(ctx, nil, second); err != domain.ErrActiveSubscriptionExists {
			t.Fatalf("expected ErrActiveSubscriptionExists, got %v", err)
		}
		// A canceled row does not hold the slot.
		if err := first.Cancel("done", time.Now()); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := repo.Save(ctx, nil, first); err != nil {
			t.Fatalf("save canceled: %v", err)
		}
		if err := repo.Save(ctx, nil, second); err != nil {
			t.Fatalf("save second after cancel: %v", err)
		}
	})

	t.Run("FindActiveByUser ignores closed windows", func(t *testing.T) {
		cleanup(t)
		s := newActiveSubscription(t, "user-1", "")
		s.EndDate = time.Now().Add(-time.Hour)
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := repo.FindActiveByUser(ctx, nil, "user-1"); err != domain.ErrSubscriptionNotFound {
			t.Fatalf("expected ErrSubscriptionNotFound for a lapsed window, got %v", err)
		}
	})

	t.Run("FindRenewable matches the sweep predicate", func(t *testing.T) {
		cleanup(t)
		now := time.Now()
		horizon := now.Add(24 * time.Hour)

		due := newActiveSubscription(t, "user-due", "bkey_due")
		due.EndDate = now.Add(12 * time.Hour)
		repo.Save(ctx, nil, due)

		noKey := newActiveSubscription(t, "user-nokey", "")
		noKey.EndDate = now.Add(12 * time.Hour)
		repo.Save(ctx, nil, noKey)

		optedOut := newActiveSubscription(t, "user-out", "bkey_out")
		optedOut.EndDate = now.Add(12 * time.Hour)
		optedOut.AutoRenew = false
		repo.Save(ctx, nil, optedOut)

		farOut := newActiveSubscription(t, "user-far", "bkey_far")
		repo.Save(ctx, nil, farOut) // end date one month out

		got, err := repo.FindRenewable(ctx, nil, now, horizon)
		if err != nil {
			t.Fatalf("FindRenewable: %v", err)
		}
		if len(got) != 1 || got[0].ID != due.ID {
			t.Errorf("expected only the due subscription, got %d rows", len(got))
		}
	})

	t.Run("FindExpired returns lapsed active rows", func(t *testing.T) {
		cleanup(t)
		now := time.Now()

		lapsed := newActiveSubscription(t, "user-lapsed", "")
		lapsed.EndDate = now.Add(-time.Hour)
		repo.Save(ctx, nil, lapsed)

		open := newActiveSubscription(t, "user-open", "")
		repo.Save(ctx, nil, open)

		got, err := repo.FindExpired(ctx, nil, now)
		if err != nil {
			t.Fatalf("FindExpired: %v", err)
		}
		if len(got) != 1 || got[0].ID != lapsed.ID {
			t.Errorf("expected only the lapsed subscription, got %d rows", len(got))
		}
	})

	t.Run("ExpireIfActive claims the transition exactly once", func(t *testing.T) {
		cleanup(t)
		now := time.Now()
		s := newActiveSubscription(t, "user-1", "")
		s.EndDate = now.Add(-time.Hour)
		if err := repo.Save(ctx, nil, s); err != nil {
			t.Fatalf("save: %v", err)
		}

		// Two sweeps that both listed the row race on the guarded update.
		results := make(chan bool, 8)
		for i := 0; i < 8; i++ {
			go func() {
				won, err := repo.ExpireIfActive(ctx, nil, s.ID, now)
				if err != nil {
					t.Errorf("ExpireIfActive: %v", err)
				}
				results <- won
			}()
		}
		winners := 0
		for i := 0; i < 8; i++ {
			if <-results {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
		got, err := repo.FindByID(ctx, nil, s.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected EXPIRED, got %s", got.Status)
		}
	})
}
