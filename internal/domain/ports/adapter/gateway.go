package adapter

import (
	"context"
	"fmt"
	"time"
)

// PaymentResult is the gateway's view of a settled charge, shared by the
// one-off confirm and billing-key charge calls.
type PaymentResult struct {
	PaymentKey  string
	OrderID     string
	Status      string
	TotalAmount int64
	Method      string
	ApprovedAt  time.Time
}

// BillingKeyResult is returned when an authKey is exchanged for a billing key.
type BillingKeyResult struct {
	BillingKey  string
	CustomerKey string
}

// GatewayError is a definitive non-2xx answer from the gateway (a decline,
// not a transport failure). Transport errors come back as plain errors and
// must leave the payment PENDING.
type GatewayError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d %s: %s", e.HTTPStatus, e.Code, e.Message)
}

// PaymentGateway is the outbound port to the card-payment gateway. Retry and
// backoff internals belong to the implementation; every call carries a
// bounded timeout through ctx.
type PaymentGateway interface {
	IssueBillingKey(ctx context.Context, authKey, customerKey string) (*BillingKeyResult, error)
	ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*PaymentResult, error)
	ChargeBillingKey(ctx context.Context, billingKey, customerKey, orderID string, amount int64, orderName string) (*PaymentResult, error)
	CancelPayment(ctx context.Context, paymentKey, reason string) error
}
