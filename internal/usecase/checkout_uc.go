// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/infra/metrics"
)

// CheckoutInfo is everything the client SDK needs to open the gateway's
// payment window. Returning it mutates nothing besides the PENDING payment
// row that carries the idempotency key.
type CheckoutInfo struct {
	OrderID      string             `json:"orderId"`
	OrderName    string             `json:"orderName"`
	Amount       int64              `json:"amount"`
	CustomerKey  string             `json:"customerKey"`
	Plan         model.Plan         `json:"plan"`
	BillingCycle model.BillingCycle `json:"billingCycle"`
}

// CheckoutOrchestrator drives the application-facing payment operations:
// checkout, confirm, confirm-billing, refund, and the recurring-renewal batch.
// It calls the gateway and applies results through PaymentLedger and
// SubscriptionStore.
type CheckoutOrchestrator struct {
	ledger   *PaymentLedger
	subs     *SubscriptionStore
	gateway  adapter.PaymentGateway
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewCheckoutOrchestrator(ledger *PaymentLedger, subs *SubscriptionStore, gateway adapter.PaymentGateway, notifier adapter.Notifier, logger *zerolog.Logger) *CheckoutOrchestrator {
	l := logger.With().Str("component", "CheckoutOrchestrator").Logger()
	return &CheckoutOrchestrator{ledger: ledger, subs: subs, gateway: gateway, notifier: notifier, log: &l}
}

// customerKey binds a user to a gateway customer record; it must be stable
// across checkouts so billing-key ownership checks hold.
func customerKey(userID string) string { return "cus_" + userID }

// Checkout validates the purchase and returns gateway-facing client
// parameters. No gateway call, no subscription mutation.
func (c *CheckoutOrchestrator) Checkout(ctx context.Context, userID string, plan model.Plan, cycle model.BillingCycle) (*CheckoutInfo, error) {
	if !plan.Valid() || !cycle.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if !plan.Purchasable() {
		return nil, domain.ErrPlanNotPurchasable
	}
	if existing, err := c.subs.FindActiveByUser(ctx, userID); err == nil && existing.IsActive(time.Now()) {
		return nil, domain.ErrActiveSubscriptionExists
	} else if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}

	p, err := c.ledger.CreatePending(ctx, userID, plan.Price(cycle), model.PaymentTypeInitial, plan, cycle, customerKey(userID))
	if err != nil {
		return nil, err
	}
	return &CheckoutInfo{
		OrderID:      p.OrderID,
		OrderName:    model.OrderName(plan, cycle),
		Amount:       p.Amount,
		CustomerKey:  p.CustomerKey,
		Plan:         plan,
		BillingCycle: cycle,
	}, nil
}

// ConfirmBilling exchanges authKey for a billing key, charges it once, and
// settles the matching payment. MONTHLY flows only. Retrying after success
// returns the already-granted subscription instead of re-charging.
func (c *CheckoutOrchestrator) ConfirmBilling(ctx context.Context, userID, authKey, custKey, orderID string) (*model.Subscription, error) {
	p, err := c.loadOwnPayment(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if p.CustomerKey != custKey {
		return nil, domain.ErrPaymentCustomerKeyMismatch
	}
	if p.BillingCycle != model.BillingCycleMonthly {
		return nil, domain.ErrCycleNotSupported
	}
	if p.Status == model.PaymentStatusCompleted {
		sub, err := c.subs.FindActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		// The webhook may have settled the charge before an earlier confirm
		// stored the billing key. Re-issue from the authKey so the
		// subscription still auto-renews.
		if sub.BillingKey == nil {
			c.repairBillingKey(ctx, sub, authKey, custKey)
		}
		return sub, nil
	}
	if p.Status != model.PaymentStatusPending {
		return nil, domain.ErrInvalidTransition
	}

	bk, err := c.gateway.IssueBillingKey(ctx, authKey, custKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBillingKeyIssueFailed, err)
	}

	res, err := c.gateway.ChargeBillingKey(ctx, bk.BillingKey, custKey, orderID, p.Amount, model.OrderName(p.Plan, p.BillingCycle))
	if err != nil {
		c.recordGatewayFailure(ctx, p, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrBillingPaymentFailed, err)
	}

	return c.settle(ctx, p, res.PaymentKey, res.Method, &bk.BillingKey)
}

// ConfirmPayment confirms a one-off (non-recurring) charge. YEARLY only.
// The amount must equal the pending payment's amount; a mismatch is rejected
// before any gateway call, leaving the payment PENDING.
func (c *CheckoutOrchestrator) ConfirmPayment(ctx context.Context, userID, paymentKey, orderID string, amount int64) (*model.Subscription, error) {
	p, err := c.loadOwnPayment(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if p.BillingCycle != model.BillingCycleYearly {
		return nil, domain.ErrCycleNotSupported
	}
	if p.Status == model.PaymentStatusCompleted {
		return c.subs.FindActiveByUser(ctx, userID)
	}
	if p.Status != model.PaymentStatusPending {
		return nil, domain.ErrInvalidTransition
	}
	if amount != p.Amount {
		return nil, domain.ErrPaymentAmountMismatch
	}

	res, err := c.gateway.ConfirmPayment(ctx, paymentKey, orderID, amount)
	if err != nil {
		c.recordGatewayFailure(ctx, p, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentConfirmationFailed, err)
	}

	return c.settle(ctx, p, res.PaymentKey, res.Method, nil)
}

// SettleCompleted merges a gateway-reported success into local state. Shared
// by the synchronous confirm paths and the webhook reconciler so that
// whichever arrives first wins through the same compare-and-set.
func (c *CheckoutOrchestrator) SettleCompleted(ctx context.Context, p *model.Payment, paymentKey, method string) (*model.Subscription, error) {
	return c.settle(ctx, p, paymentKey, method, nil)
}

func (c *CheckoutOrchestrator) settle(ctx context.Context, p *model.Payment, paymentKey, method string, billingKey *string) (*model.Subscription, error) {
	won, err := c.ledger.TryComplete(ctx, p.OrderID, paymentKey, method)
	if err != nil {
		return nil, err
	}
	if !won {
		// The other racer (webhook or confirm) already granted entitlement.
		// The webhook path never sees a just-issued billing key, so a losing
		// confirm-billing still has to store it or the subscription drops out
		// of the renewal sweep for good.
		existing, err := c.subs.FindActiveByUser(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if billingKey != nil && existing.BillingKey == nil {
			if err := c.subs.SetBillingKey(ctx, existing, *billingKey); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	now := time.Now()
	existing, err := c.subs.FindActiveByUser(ctx, p.UserID)
	switch {
	case err == nil:
		if p.Type == model.PaymentTypeRecurring {
			if err := c.subs.Renew(ctx, existing, now, p.BillingCycle.Period(now)); err != nil {
				return nil, err
			}
		}
		if billingKey != nil {
			if err := c.subs.SetBillingKey(ctx, existing, *billingKey); err != nil {
				return nil, err
			}
		}
		c.notifyCompleted(ctx, p)
		return existing, nil
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		sub, err := c.subs.CreatePending(ctx, p.UserID, p.CustomerKey, p.Plan, p.BillingCycle)
		if err != nil {
			return nil, err
		}
		sub.BillingKey = billingKey
		if err := c.subs.Activate(ctx, sub); err != nil {
			return nil, err
		}
		c.notifyCompleted(ctx, p)
		return sub, nil
	default:
		return nil, err
	}
}

// DueRenewals lists the subscriptions whose paid window closes within the
// horizon and that are eligible for an automatic charge.
func (c *CheckoutOrchestrator) DueRenewals(ctx context.Context, now time.Time, horizon time.Duration) ([]*model.Subscription, error) {
	return c.subs.Renewables(ctx, now, now.Add(horizon))
}

// RenewSubscription charges the stored billing key once and extends the
// subscription window. A failure affects only this subscription; the caller
// decides whether to keep going with the rest of the batch.
func (c *CheckoutOrchestrator) RenewSubscription(ctx context.Context, now time.Time, sub *model.Subscription) error {
	if err := c.renewOne(ctx, now, sub); err != nil {
		c.log.Error().Err(err).Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("renewal failed")
		metrics.IncRenewalCharge("failed")
		return err
	}
	metrics.IncRenewalCharge("renewed")
	return nil
}

func (c *CheckoutOrchestrator) renewOne(ctx context.Context, now time.Time, sub *model.Subscription) error {
	// The order id is derived from (subscription, period end), so every sweep
	// that lists this subscription before the window moves shares one payment
	// row. Re-entrant runs after a lock TTL expiry land on the same row
	// instead of minting a second charge.
	p, err := c.ledger.CreatePendingRenewal(ctx, sub)
	if err != nil {
		return err
	}
	switch p.Status {
	case model.PaymentStatusCompleted:
		// A concurrent sweep already charged and settled this period.
		return nil
	case model.PaymentStatusFailed, model.PaymentStatusCanceled:
		return fmt.Errorf("%w: charge for this period already declined", domain.ErrBillingPaymentFailed)
	}
	res, err := c.gateway.ChargeBillingKey(ctx, *sub.BillingKey, sub.CustomerKey, p.OrderID, p.Amount, model.OrderName(sub.Plan, sub.BillingCycle))
	if err != nil {
		c.recordGatewayFailure(ctx, p, err)
		return fmt.Errorf("%w: %v", domain.ErrBillingPaymentFailed, err)
	}
	won, err := c.ledger.TryComplete(ctx, p.OrderID, res.PaymentKey, res.Method)
	if err != nil {
		return err
	}
	if !won {
		// The concurrent sweep or the gateway webhook settled this charge.
		return nil
	}
	if err := c.subs.Renew(ctx, sub, now, sub.BillingCycle.Period(now)); err != nil {
		return err
	}
	c.notifyCompleted(ctx, p)
	return nil
}

// CancelSubscription turns off auto-renewal; the paid window stays open.
func (c *CheckoutOrchestrator) CancelSubscription(ctx context.Context, userID, reason string) (*model.Subscription, error) {
	sub, err := c.subs.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := c.subs.Cancel(ctx, sub, reason); err != nil {
		return nil, err
	}
	return sub, nil
}

// RefundPayment cancels a completed payment at the gateway and applies the
// COMPLETED->CANCELED refund edge, then closes the granted subscription.
func (c *CheckoutOrchestrator) RefundPayment(ctx context.Context, userID, orderID, reason string) (*model.Payment, error) {
	p, err := c.loadOwnPayment(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusCompleted || p.PaymentKey == nil {
		return nil, domain.ErrInvalidTransition
	}
	if err := c.gateway.CancelPayment(ctx, *p.PaymentKey, reason); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCancelFailed, err)
	}
	if err := c.ledger.Cancel(ctx, p, reason); err != nil {
		return nil, err
	}
	if sub, err := c.subs.FindActiveByUser(ctx, userID); err == nil {
		if err := c.subs.Cancel(ctx, sub, "refunded: "+reason); err != nil {
			c.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("cancel after refund failed")
		}
	}
	return p, nil
}

// ActiveSubscription returns the caller's current entitlement.
func (c *CheckoutOrchestrator) ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return c.subs.FindActiveByUser(ctx, userID)
}

// Invoices returns one page of the caller's payment history.
func (c *CheckoutOrchestrator) Invoices(ctx context.Context, userID string, offset, limit int) ([]*model.Payment, int, error) {
	return c.ledger.Invoices(ctx, userID, offset, limit)
}

func (c *CheckoutOrchestrator) loadOwnPayment(ctx context.Context, userID, orderID string) (*model.Payment, error) {
	p, err := c.ledger.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		// Foreign orders look like missing ones to the caller.
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

// repairBillingKey re-issues a billing key for a subscription the webhook
// settled before a confirm could store one. Best effort: the authKey may no
// longer be redeemable, in which case the client has to restart the billing
// authorization.
func (c *CheckoutOrchestrator) repairBillingKey(ctx context.Context, sub *model.Subscription, authKey, custKey string) {
	bk, err := c.gateway.IssueBillingKey(ctx, authKey, custKey)
	if err != nil {
		c.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("billing key re-issue failed, subscription will not auto-renew")
		return
	}
	if err := c.subs.SetBillingKey(ctx, sub, bk.BillingKey); err != nil {
		c.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("storing re-issued billing key failed")
	}
}

// recordGatewayFailure marks the payment FAILED only on a definitive gateway
// decline. A transport error (timeout, connection reset) leaves the row
// PENDING so a later webhook or manual reconciliation can still resolve it.
func (c *CheckoutOrchestrator) recordGatewayFailure(ctx context.Context, p *model.Payment, err error) {
	var gwErr *adapter.GatewayError
	if !errors.As(err, &gwErr) {
		c.log.Warn().Err(err).Str("order_id", p.OrderID).Msg("gateway transport error, payment stays pending")
		return
	}
	if failErr := c.ledger.Fail(ctx, p, gwErr.Code+": "+gwErr.Message); failErr != nil {
		c.log.Error().Err(failErr).Str("order_id", p.OrderID).Msg("recording gateway decline failed")
	}
	c.notifier.PaymentFailed(ctx, p.UserID, p.OrderID, gwErr.Message)
}

func (c *CheckoutOrchestrator) notifyCompleted(ctx context.Context, p *model.Payment) {
	metrics.AddPaymentRevenue(p.Amount)
	c.notifier.PaymentCompleted(ctx, p)
}
