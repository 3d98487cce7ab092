package notify

import (
	"context"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/infra/i18n"
)

// LogNotifier renders localized notification text and writes it to the
// structured log. It stands in for the platform's mail/push service; swapping
// it out only requires another adapter.Notifier implementation at wiring time.
type LogNotifier struct {
	tr  *i18n.Translator
	log *zerolog.Logger
}

var _ adapter.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(tr *i18n.Translator, logger *zerolog.Logger) *LogNotifier {
	ntfLog := logger.With().Str("component", "Notifier").Logger()
	return &LogNotifier{tr: tr, log: &ntfLog}
}

func (n *LogNotifier) PaymentCompleted(ctx context.Context, p *model.Payment) {
	n.log.Info().
		Str("user_id", p.UserID).
		Str("order_id", p.OrderID).
		Str("message", n.tr.T("payment.completed", p.Amount, model.OrderName(p.Plan, p.BillingCycle))).
		Msg("payment completed notification")
}

func (n *LogNotifier) PaymentFailed(ctx context.Context, userID, orderID, reason string) {
	n.log.Info().
		Str("user_id", userID).
		Str("order_id", orderID).
		Str("message", n.tr.T("payment.failed", orderID, reason)).
		Msg("payment failed notification")
}

func (n *LogNotifier) SubscriptionExpired(ctx context.Context, sub *model.Subscription) {
	n.log.Info().
		Str("user_id", sub.UserID).
		Str("subscription_id", sub.ID).
		Str("message", n.tr.T("subscription.expired", string(sub.Plan))).
		Msg("subscription expired notification")
}
