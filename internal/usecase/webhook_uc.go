// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/infra/metrics"
)

// WebhookReconciler idempotently applies gateway-pushed events. Delivery is
// at-least-once and unordered; every branch in here must be a safe no-op the
// second time it runs.
type WebhookReconciler struct {
	ledger   *PaymentLedger
	subs     *SubscriptionStore
	checkout *CheckoutOrchestrator
	log      *zerolog.Logger
}

func NewWebhookReconciler(ledger *PaymentLedger, subs *SubscriptionStore, checkout *CheckoutOrchestrator, logger *zerolog.Logger) *WebhookReconciler {
	l := logger.With().Str("component", "WebhookReconciler").Logger()
	return &WebhookReconciler{ledger: ledger, subs: subs, checkout: checkout, log: &l}
}

// Apply routes one verified, parsed event. Unrecognized event types are
// acknowledged so the gateway does not retry events this system intentionally
// ignores.
func (w *WebhookReconciler) Apply(ctx context.Context, ev *model.WebhookEvent) error {
	switch ev.EventType {
	case model.EventPaymentStatusChanged:
		return w.applyPaymentStatus(ctx, ev)
	case model.EventBillingKeyDeleted, model.EventBillingDeleted:
		return w.applyBillingKeyDeleted(ctx, ev)
	default:
		w.log.Info().Str("event_type", ev.EventType).Msg("ignoring unrecognized webhook event")
		metrics.IncWebhookEvent(ev.EventType, "ignored")
		return nil
	}
}

func (w *WebhookReconciler) applyPaymentStatus(ctx context.Context, ev *model.WebhookEvent) error {
	p, err := w.ledger.FindByOrderID(ctx, ev.Data.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			// Unknown or foreign order; never an error to the gateway.
			w.log.Info().Str("order_id", ev.Data.OrderID).Msg("webhook for unknown order, skipping")
			metrics.IncWebhookEvent(ev.EventType, "unknown_order")
			return nil
		}
		return err
	}

	switch ev.Data.Status {
	case model.GatewayStatusDone:
		// Same race-safe primitive as the synchronous confirm path: first
		// arrival wins, the second is a no-op.
		if _, err := w.checkout.SettleCompleted(ctx, p, ev.Data.PaymentKey, ev.Data.Method); err != nil {
			return err
		}
		metrics.IncWebhookEvent(ev.EventType, "settled")
		return nil

	case model.GatewayStatusCanceled:
		if p.Status == model.PaymentStatusCanceled {
			metrics.IncWebhookEvent(ev.EventType, "duplicate")
			return nil
		}
		reason := ev.Data.CancelReason
		if reason == "" {
			reason = "canceled by gateway"
		}
		if err := w.ledger.Cancel(ctx, p, reason); err != nil {
			return err
		}
		metrics.IncWebhookEvent(ev.EventType, "canceled")
		return nil

	case model.GatewayStatusAborted, model.GatewayStatusExpired:
		if p.Status != model.PaymentStatusPending {
			metrics.IncWebhookEvent(ev.EventType, "duplicate")
			return nil
		}
		if err := w.ledger.Fail(ctx, p, ev.Data.Status); err != nil {
			return err
		}
		metrics.IncWebhookEvent(ev.EventType, "failed")
		return nil

	default:
		w.log.Info().Str("order_id", ev.Data.OrderID).Str("status", ev.Data.Status).Msg("ignoring unrecognized payment status")
		metrics.IncWebhookEvent(ev.EventType, "ignored")
		return nil
	}
}

func (w *WebhookReconciler) applyBillingKeyDeleted(ctx context.Context, ev *model.WebhookEvent) error {
	sub, err := w.subs.FindByBillingKey(ctx, ev.Data.BillingKey)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			// Already cleared by an earlier delivery, or never ours.
			metrics.IncWebhookEvent(ev.EventType, "unknown_key")
			return nil
		}
		return err
	}
	if err := w.subs.DisableBilling(ctx, sub); err != nil {
		return err
	}
	metrics.IncWebhookEvent(ev.EventType, "disabled")
	return nil
}
