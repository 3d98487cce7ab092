// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/repository"
	"studycard-subscription/internal/infra/metrics"
)

// PaymentLedger owns Payment rows and their state machine. All transition
// writes go through here; the race-safe primitive is TryComplete.
type PaymentLedger struct {
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	orders   *OrderIDGenerator
	log      *zerolog.Logger
}

func NewPaymentLedger(payments repository.PaymentRepository, tm repository.TransactionManager, orders *OrderIDGenerator, logger *zerolog.Logger) *PaymentLedger {
	l := logger.With().Str("component", "PaymentLedger").Logger()
	return &PaymentLedger{payments: payments, tm: tm, orders: orders, log: &l}
}

// CreatePending allocates a fresh orderId and persists a PENDING payment
// before any gateway call is made.
func (l *PaymentLedger) CreatePending(ctx context.Context, userID string, amount int64, ptype model.PaymentType, plan model.Plan, cycle model.BillingCycle, customerKey string) (*model.Payment, error) {
	p, err := model.NewPendingPayment(uuid.NewString(), userID, l.orders.Next(), amount, ptype, plan, cycle, customerKey)
	if err != nil {
		return nil, err
	}
	if err := l.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	l.log.Debug().Str("order_id", p.OrderID).Str("user_id", userID).Int64("amount", amount).Msg("pending payment created")
	return p, nil
}

// CreatePendingRenewal persists the PENDING payment for one renewal period
// under the deterministic per-period order id. When a re-entrant sweep already
// created the row, the stored payment is returned instead of a duplicate, so
// the caller can see how far the other run got.
func (l *PaymentLedger) CreatePendingRenewal(ctx context.Context, sub *model.Subscription) (*model.Payment, error) {
	orderID := RenewalOrderID(sub.ID, sub.EndDate)
	if existing, err := l.payments.FindByOrderID(ctx, repository.NoTX, orderID); err == nil {
		return existing, nil
	} else if err != domain.ErrPaymentNotFound {
		return nil, err
	}
	p, err := model.NewPendingPayment(uuid.NewString(), sub.UserID, orderID, sub.Plan.Price(sub.BillingCycle), model.PaymentTypeRecurring, sub.Plan, sub.BillingCycle, sub.CustomerKey)
	if err != nil {
		return nil, err
	}
	if err := l.payments.Save(ctx, repository.NoTX, p); err != nil {
		// Two sweeps raced past the lookup; the unique index on order_id kept
		// one insert out. Fall back to the winner's row.
		if existing, ferr := l.payments.FindByOrderID(ctx, repository.NoTX, orderID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	l.log.Debug().Str("order_id", orderID).Str("subscription_id", sub.ID).Msg("pending renewal payment created")
	return p, nil
}

// TryComplete applies PENDING -> COMPLETED only if the row is still PENDING,
// via an atomic compare-and-set on status. When a webhook and a client
// confirm race on the same orderId, exactly one caller observes true and
// performs downstream entitlement changes; the other gets false with no side
// effects and no error.
func (l *PaymentLedger) TryComplete(ctx context.Context, orderID, paymentKey, method string) (bool, error) {
	now := time.Now()
	won, err := l.payments.UpdateStatusIfPending(ctx, repository.NoTX, orderID, model.PaymentStatusCompleted, &paymentKey, &method, &now)
	if err != nil {
		return false, err
	}
	if won {
		metrics.IncPayment(string(model.PaymentStatusCompleted))
		l.log.Info().Str("order_id", orderID).Str("payment_key", paymentKey).Msg("payment completed")
	} else {
		l.log.Debug().Str("order_id", orderID).Msg("tryComplete lost: payment no longer pending")
	}
	return won, nil
}

// Complete is the non-racy variant for callers that already hold exclusivity.
// It locks the row FOR UPDATE and raises ErrPaymentAlreadyCompleted when the
// payment is not PENDING.
func (l *PaymentLedger) Complete(ctx context.Context, orderID, paymentKey, method string) error {
	return l.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := l.payments.FindByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := p.Complete(paymentKey, method, time.Now()); err != nil {
			return err
		}
		if err := l.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		metrics.IncPayment(string(model.PaymentStatusCompleted))
		return nil
	})
}

// Cancel applies the PENDING->CANCELED or COMPLETED->CANCELED (refund) edge.
func (l *PaymentLedger) Cancel(ctx context.Context, p *model.Payment, reason string) error {
	now := time.Now()
	if err := p.Cancel(reason, now); err != nil {
		return err
	}
	if err := l.payments.UpdateStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusCanceled, &reason, now); err != nil {
		return err
	}
	metrics.IncPayment(string(model.PaymentStatusCanceled))
	l.log.Info().Str("order_id", p.OrderID).Str("reason", reason).Msg("payment canceled")
	return nil
}

// Fail applies PENDING->FAILED.
func (l *PaymentLedger) Fail(ctx context.Context, p *model.Payment, reason string) error {
	now := time.Now()
	if err := p.Fail(reason, now); err != nil {
		return err
	}
	if err := l.payments.UpdateStatus(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, &reason, now); err != nil {
		return err
	}
	metrics.IncPayment(string(model.PaymentStatusFailed))
	l.log.Info().Str("order_id", p.OrderID).Str("reason", reason).Msg("payment failed")
	return nil
}

func (l *PaymentLedger) FindByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return l.payments.FindByOrderID(ctx, repository.NoTX, orderID)
}

func (l *PaymentLedger) FindByPaymentKey(ctx context.Context, paymentKey string) (*model.Payment, error) {
	return l.payments.FindByPaymentKey(ctx, repository.NoTX, paymentKey)
}

// Invoices returns one page of a user's payment history plus the total count.
func (l *PaymentLedger) Invoices(ctx context.Context, userID string, offset, limit int) ([]*model.Payment, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := l.payments.ListByUser(ctx, repository.NoTX, userID, offset, limit)
	if err != nil && err != domain.ErrPaymentNotFound {
		return nil, 0, err
	}
	total, err := l.payments.CountByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
