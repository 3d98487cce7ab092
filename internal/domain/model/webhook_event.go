package model

// Gateway-pushed event types this system reconciles. Anything else is
// acknowledged and ignored.
const (
	EventPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	EventBillingKeyDeleted    = "BILLING_KEY_DELETED"
	// Older gateway versions push this alias for the same event.
	EventBillingDeleted = "BILLING_DELETED"
)

// Payment statuses as reported inside webhook payloads.
const (
	GatewayStatusDone     = "DONE"
	GatewayStatusCanceled = "CANCELED"
	GatewayStatusAborted  = "ABORTED"
	GatewayStatusExpired  = "EXPIRED"
)

// WebhookEvent is the decoded body of POST /api/webhooks/toss.
// Delivery is at-least-once and may be out of order.
type WebhookEvent struct {
	EventType string           `json:"eventType"`
	CreatedAt string           `json:"createdAt"`
	Data      WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	PaymentKey   string `json:"paymentKey,omitempty"`
	OrderID      string `json:"orderId,omitempty"`
	Status       string `json:"status,omitempty"`
	TotalAmount  int64  `json:"totalAmount,omitempty"`
	Method       string `json:"method,omitempty"`
	ApprovedAt   string `json:"approvedAt,omitempty"`
	CanceledAt   string `json:"canceledAt,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
	BillingKey   string `json:"billingKey,omitempty"`
}
