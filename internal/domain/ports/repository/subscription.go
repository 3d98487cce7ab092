package repository

import (
	"context"
	"time"

	"studycard-subscription/internal/domain/model"
)

// SubscriptionRepository owns Subscription rows and the sweep queries used by
// the background jobs.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindActiveByUser returns the single ACTIVE row with end_date in the
	// future, or ErrSubscriptionNotFound.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	FindByBillingKey(ctx context.Context, tx Tx, billingKey string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)

	// FindRenewable is the renewal scheduler's work queue: ACTIVE, MONTHLY,
	// billing key present, auto-renewal enabled, end_date in [now, horizon].
	FindRenewable(ctx context.Context, tx Tx, now, horizon time.Time) ([]*model.Subscription, error)
	// FindExpired is the expiry sweep's work queue: ACTIVE with end_date < now.
	FindExpired(ctx context.Context, tx Tx, now time.Time) ([]*model.Subscription, error)
	// ExpireIfActive atomically applies ACTIVE -> EXPIRED on one row. Rows
	// affected decides concurrent sweeps: exactly one caller sees true.
	ExpireIfActive(ctx context.Context, tx Tx, id string, at time.Time) (bool, error)
}
