package adapter

import (
	"context"

	"studycard-subscription/internal/domain/model"
)

// Notifier is the trigger port for user-facing notifications. The billing
// core only decides that a notification should be emitted; delivery (push,
// email) lives outside this service. A delivery failure must never roll back
// already-applied payment or subscription state, so implementations log and
// swallow their own errors.
type Notifier interface {
	PaymentCompleted(ctx context.Context, p *model.Payment)
	PaymentFailed(ctx context.Context, userID, orderID, reason string)
	SubscriptionExpired(ctx context.Context, s *model.Subscription)
}
