package model

import (
	"time"

	"studycard-subscription/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "PENDING"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusExpired  SubscriptionStatus = "EXPIRED"
)

var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending: {SubscriptionStatusActive},
	SubscriptionStatusActive:  {SubscriptionStatusCanceled, SubscriptionStatusExpired},
}

func (s SubscriptionStatus) CanTransition(to SubscriptionStatus) bool {
	for _, next := range subscriptionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Subscription is a user's entitlement window. CANCELED and EXPIRED rows stay
// readable for history but are never re-activated in place; a new checkout
// creates a new row.
type Subscription struct {
	ID          string // UUID
	UserID      string // UUID
	CustomerKey string // unique per subscription record
	// BillingKey is set only when recurring charges have been authorized by
	// the gateway.
	BillingKey   *string
	Plan         Plan
	Status       SubscriptionStatus
	BillingCycle BillingCycle
	StartDate    time.Time
	EndDate      time.Time
	// AutoRenew replaces the old cancel-reason sentinel for "auto-renewal
	// disabled". CancelReason is a human-readable note only.
	AutoRenew    bool
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPendingSubscription builds a PENDING subscription for the given terms.
func NewPendingSubscription(id, userID, customerKey string, plan Plan, cycle BillingCycle) (*Subscription, error) {
	if id == "" || userID == "" || customerKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:           id,
		UserID:       userID,
		CustomerKey:  customerKey,
		Plan:         plan,
		Status:       SubscriptionStatusPending,
		BillingCycle: cycle,
		AutoRenew:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActive reports whether the entitlement window is currently open.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate.After(now)
}

// Activate opens the first entitlement window on successful payment.
func (s *Subscription) Activate(now time.Time) error {
	if !s.Status.CanTransition(SubscriptionStatusActive) {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusActive
	s.StartDate = now
	s.EndDate = s.BillingCycle.Period(now)
	s.UpdatedAt = now
	return nil
}

// Renew resets the window after a successful recurring charge and forces
// ACTIVE. Only meaningful while the cycle is MONTHLY.
func (s *Subscription) Renew(now, newEnd time.Time) error {
	if s.BillingCycle != BillingCycleMonthly {
		return domain.ErrCycleNotSupported
	}
	if s.Status == SubscriptionStatusCanceled || s.Status == SubscriptionStatusExpired {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusActive
	s.StartDate = now
	s.EndDate = newEnd
	s.UpdatedAt = now
	return nil
}

// Cancel is terminal for auto-renewal; the window remains usable until
// EndDate.
func (s *Subscription) Cancel(reason string, now time.Time) error {
	if s.Status == SubscriptionStatusCanceled {
		return domain.ErrSubscriptionAlreadyCanceled
	}
	if !s.Status.CanTransition(SubscriptionStatusCanceled) {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusCanceled
	s.CancelReason = &reason
	s.AutoRenew = false
	s.UpdatedAt = now
	return nil
}

// Expire is terminal once EndDate has passed.
func (s *Subscription) Expire(now time.Time) error {
	if !s.Status.CanTransition(SubscriptionStatusExpired) {
		return domain.ErrInvalidTransition
	}
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = now
	return nil
}

// DisableAutoRenew clears the billing key and stops further auto-charges.
// Used when the gateway reports the key deleted.
func (s *Subscription) DisableAutoRenew(now time.Time) {
	s.BillingKey = nil
	s.AutoRenew = false
	s.UpdatedAt = now
}

// RenewableWithin is the renewal sweep predicate: ACTIVE, MONTHLY, a billing
// key on file, auto-renewal enabled, and EndDate inside [now, horizon].
// The SQL in the postgres repo mirrors this exactly.
func (s *Subscription) RenewableWithin(now, horizon time.Time) bool {
	return s.Status == SubscriptionStatusActive &&
		s.BillingCycle == BillingCycleMonthly &&
		s.BillingKey != nil &&
		s.AutoRenew &&
		!s.EndDate.Before(now) &&
		!s.EndDate.After(horizon)
}
