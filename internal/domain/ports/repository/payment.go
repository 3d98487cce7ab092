package repository

import (
	"context"
	"time"

	"studycard-subscription/internal/domain/model"
)

// PaymentRepository owns Payment rows. Transition writes funnel through the
// ledger use case; UpdateStatusIfPending is the race-safe compare-and-set
// shared by the webhook and client-confirmation paths.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByOrderID locks the row FOR UPDATE when called inside a tx.
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	FindByPaymentKey(ctx context.Context, tx Tx, paymentKey string) (*model.Payment, error)

	// UpdateStatusIfPending atomically applies PENDING -> status and reports
	// whether this caller won the transition. Losing is not an error.
	UpdateStatusIfPending(ctx context.Context, tx Tx, orderID string, status model.PaymentStatus, paymentKey, method *string, paidAt *time.Time) (bool, error)
	// UpdateStatus applies an unconditional transition write (cancel/fail and
	// the refund edge). Callers check legality against the state machine first.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, reason *string, at time.Time) error

	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Payment, error)
	CountByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
