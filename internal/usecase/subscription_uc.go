// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/domain/ports/repository"
	"studycard-subscription/internal/infra/metrics"
)

// SubscriptionStore owns Subscription rows and their state machine.
type SubscriptionStore struct {
	subs     repository.SubscriptionRepository
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewSubscriptionStore(subs repository.SubscriptionRepository, notifier adapter.Notifier, logger *zerolog.Logger) *SubscriptionStore {
	l := logger.With().Str("component", "SubscriptionStore").Logger()
	return &SubscriptionStore{subs: subs, notifier: notifier, log: &l}
}

// CreatePending creates the PENDING row that a following Activate opens.
func (s *SubscriptionStore) CreatePending(ctx context.Context, userID, customerKey string, plan model.Plan, cycle model.BillingCycle) (*model.Subscription, error) {
	sub, err := model.NewPendingSubscription(uuid.NewString(), userID, customerKey, plan, cycle)
	if err != nil {
		return nil, err
	}
	if err := s.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Activate opens the entitlement window on first successful payment.
func (s *SubscriptionStore) Activate(ctx context.Context, sub *model.Subscription) error {
	if err := sub.Activate(time.Now()); err != nil {
		return err
	}
	if err := s.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	metrics.IncSubscriptionActivated(string(sub.Plan), string(sub.BillingCycle))
	s.log.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Time("end_date", sub.EndDate).Msg("subscription activated")
	return nil
}

// Renew resets the window after a successful recurring charge.
func (s *SubscriptionStore) Renew(ctx context.Context, sub *model.Subscription, now, newEnd time.Time) error {
	if err := sub.Renew(now, newEnd); err != nil {
		return err
	}
	if err := s.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	metrics.IncSubscriptionRenewed(string(sub.Plan))
	s.log.Info().Str("subscription_id", sub.ID).Time("end_date", newEnd).Msg("subscription renewed")
	return nil
}

// Cancel disables auto-renewal; the window stays usable until EndDate.
func (s *SubscriptionStore) Cancel(ctx context.Context, sub *model.Subscription, reason string) error {
	if err := sub.Cancel(reason, time.Now()); err != nil {
		return err
	}
	if err := s.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	s.log.Info().Str("subscription_id", sub.ID).Str("reason", reason).Msg("subscription canceled")
	return nil
}

// SetBillingKey stores a freshly issued billing key.
func (s *SubscriptionStore) SetBillingKey(ctx context.Context, sub *model.Subscription, billingKey string) error {
	sub.BillingKey = &billingKey
	sub.UpdatedAt = time.Now()
	return s.subs.Save(ctx, repository.NoTX, sub)
}

// DisableBilling clears the billing key and stops auto-renewal. Used when the
// gateway reports the key deleted.
func (s *SubscriptionStore) DisableBilling(ctx context.Context, sub *model.Subscription) error {
	sub.DisableAutoRenew(time.Now())
	if err := s.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return err
	}
	s.log.Info().Str("subscription_id", sub.ID).Msg("billing key cleared, auto-renewal disabled")
	return nil
}

// FindActiveByUser returns the user's currently-active subscription or
// ErrSubscriptionNotFound.
func (s *SubscriptionStore) FindActiveByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	return s.subs.FindActiveByUser(ctx, repository.NoTX, userID)
}

func (s *SubscriptionStore) FindByBillingKey(ctx context.Context, billingKey string) (*model.Subscription, error) {
	return s.subs.FindByBillingKey(ctx, repository.NoTX, billingKey)
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return s.subs.ListByUser(ctx, repository.NoTX, userID)
}

// Renewables is the renewal scheduler's work queue.
func (s *SubscriptionStore) Renewables(ctx context.Context, now, horizon time.Time) ([]*model.Subscription, error) {
	items, err := s.subs.FindRenewable(ctx, repository.NoTX, now, horizon)
	if err != nil && err != domain.ErrSubscriptionNotFound {
		return nil, err
	}
	return items, nil
}

// FinishExpired moves every ACTIVE subscription whose window has closed to
// EXPIRED. No refund, no gateway call. Returns how many rows changed.
// Safe under concurrent re-entry: the write is a status-guarded compare-and-
// set, so a row two sweeps both listed is expired and notified exactly once.
func (s *SubscriptionStore) FinishExpired(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := s.subs.FindExpired(ctx, repository.NoTX, now)
	if err != nil {
		if err == domain.ErrSubscriptionNotFound {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, sub := range expired {
		if err := sub.Expire(now); err != nil {
			continue
		}
		won, err := s.subs.ExpireIfActive(ctx, repository.NoTX, sub.ID, now)
		if err != nil {
			s.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("expire write failed")
			continue
		}
		if !won {
			// A concurrent sweep claimed this row; it owns the notification.
			continue
		}
		s.notifier.SubscriptionExpired(ctx, sub)
		n++
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
	}
	return n, nil
}
