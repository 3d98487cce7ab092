package domain

import "errors"

var (
	// Not found
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// Conflict / already processed
	ErrPaymentAlreadyCompleted     = errors.New("payment already completed")
	ErrSubscriptionAlreadyCanceled = errors.New("subscription already canceled")
	ErrActiveSubscriptionExists    = errors.New("user already has an active subscription")

	// Validation
	ErrPaymentAmountMismatch      = errors.New("payment amount mismatch")
	ErrPaymentCustomerKeyMismatch = errors.New("payment customer key mismatch")
	ErrPlanNotPurchasable         = errors.New("plan is not purchasable")
	ErrCycleNotSupported          = errors.New("operation not supported for billing cycle")
	ErrInvalidTransition          = errors.New("illegal status transition")
	ErrInvalidArgument            = errors.New("invalid argument")

	// Upstream gateway failures
	ErrPaymentConfirmationFailed = errors.New("payment confirmation failed at gateway")
	ErrBillingKeyIssueFailed     = errors.New("billing key issue failed at gateway")
	ErrBillingPaymentFailed      = errors.New("billing key charge failed at gateway")
	ErrPaymentCancelFailed       = errors.New("payment cancel failed at gateway")

	// Security
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// Infrastructure
	ErrLockNotAcquired    = errors.New("distributed lock not acquired")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
)

// Code maps a domain error to its stable wire code. Unknown errors map to
// INTERNAL so handlers never leak raw error strings to clients.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return "PAYMENT_NOT_FOUND"
	case errors.Is(err, ErrSubscriptionNotFound):
		return "SUBSCRIPTION_NOT_FOUND"
	case errors.Is(err, ErrPaymentAlreadyCompleted):
		return "PAYMENT_ALREADY_COMPLETED"
	case errors.Is(err, ErrSubscriptionAlreadyCanceled):
		return "SUBSCRIPTION_ALREADY_CANCELED"
	case errors.Is(err, ErrActiveSubscriptionExists):
		return "ACTIVE_SUBSCRIPTION_EXISTS"
	case errors.Is(err, ErrPaymentAmountMismatch):
		return "PAYMENT_AMOUNT_MISMATCH"
	case errors.Is(err, ErrPaymentCustomerKeyMismatch):
		return "PAYMENT_CUSTOMER_KEY_MISMATCH"
	case errors.Is(err, ErrPlanNotPurchasable):
		return "PLAN_NOT_PURCHASABLE"
	case errors.Is(err, ErrCycleNotSupported):
		return "PAYMENT_NOT_SUPPORTED_FOR_CYCLE"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_STATUS_TRANSITION"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrPaymentConfirmationFailed):
		return "PAYMENT_CONFIRMATION_FAILED"
	case errors.Is(err, ErrBillingKeyIssueFailed):
		return "BILLING_KEY_ISSUE_FAILED"
	case errors.Is(err, ErrBillingPaymentFailed):
		return "BILLING_PAYMENT_FAILED"
	case errors.Is(err, ErrPaymentCancelFailed):
		return "PAYMENT_CANCEL_FAILED"
	case errors.Is(err, ErrInvalidWebhookSignature):
		return "INVALID_WEBHOOK_SIGNATURE"
	default:
		return "INTERNAL"
	}
}
