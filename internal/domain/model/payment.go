package model

import (
	"time"

	"studycard-subscription/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"   // created before any gateway call
	PaymentStatusCompleted PaymentStatus = "COMPLETED" // confirmed at the gateway
	PaymentStatusCanceled  PaymentStatus = "CANCELED"  // aborted or refunded
	PaymentStatusFailed    PaymentStatus = "FAILED"    // declined or expired
)

type PaymentType string

const (
	PaymentTypeInitial   PaymentType = "INITIAL"
	PaymentTypeRecurring PaymentType = "RECURRING"
)

// paymentTransitions is the single source of truth for legal status moves.
// COMPLETED->CANCELED is the refund edge.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusCanceled, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusCanceled},
}

// CanTransition reports whether moving from -> to is legal.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment records one attempted charge. OrderID is the caller-generated
// idempotency key presented to the gateway; PaymentKey is assigned by the
// gateway and absent while PENDING. Rows are never deleted.
type Payment struct {
	ID           string // UUID
	UserID       string // UUID
	OrderID      string // globally unique, gateway-facing
	PaymentKey   *string
	Amount       int64 // KRW
	Status       PaymentStatus
	Type         PaymentType
	Method       *string
	PaidAt       *time.Time
	CanceledAt   *time.Time
	CancelReason *string
	FailReason   *string

	// Snapshot of the terms being purchased; needed before a Subscription
	// exists for INITIAL payments.
	Plan         Plan
	BillingCycle BillingCycle
	CustomerKey  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPendingPayment builds a PENDING payment for the given terms.
func NewPendingPayment(id, userID, orderID string, amount int64, ptype PaymentType, plan Plan, cycle BillingCycle, customerKey string) (*Payment, error) {
	if id == "" || userID == "" || orderID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:           id,
		UserID:       userID,
		OrderID:      orderID,
		Amount:       amount,
		Status:       PaymentStatusPending,
		Type:         ptype,
		Plan:         plan,
		BillingCycle: cycle,
		CustomerKey:  customerKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Complete applies PENDING -> COMPLETED on the in-memory copy.
// Persistence must go through the ledger's compare-and-set.
func (p *Payment) Complete(paymentKey, method string, at time.Time) error {
	if !p.Status.CanTransition(PaymentStatusCompleted) {
		return domain.ErrPaymentAlreadyCompleted
	}
	p.Status = PaymentStatusCompleted
	p.PaymentKey = &paymentKey
	p.Method = &method
	p.PaidAt = &at
	p.UpdatedAt = at
	return nil
}

func (p *Payment) Cancel(reason string, at time.Time) error {
	if !p.Status.CanTransition(PaymentStatusCanceled) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusCanceled
	p.CancelReason = &reason
	p.CanceledAt = &at
	p.UpdatedAt = at
	return nil
}

func (p *Payment) Fail(reason string, at time.Time) error {
	if !p.Status.CanTransition(PaymentStatusFailed) {
		return domain.ErrInvalidTransition
	}
	p.Status = PaymentStatusFailed
	p.FailReason = &reason
	p.UpdatedAt = at
	return nil
}
