package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/infra/metrics"
	"studycard-subscription/internal/infra/payment"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeDomainError maps a use case error onto an HTTP status using the
// domain error code. Unknown errors collapse to a 500 with no detail leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "PAYMENT_NOT_FOUND", "SUBSCRIPTION_NOT_FOUND":
		status = http.StatusNotFound
	case "PAYMENT_ALREADY_COMPLETED", "SUBSCRIPTION_ALREADY_CANCELED", "ACTIVE_SUBSCRIPTION_EXISTS":
		status = http.StatusConflict
	case "PAYMENT_AMOUNT_MISMATCH", "PAYMENT_CUSTOMER_KEY_MISMATCH", "PLAN_NOT_PURCHASABLE",
		"PAYMENT_NOT_SUPPORTED_FOR_CYCLE", "INVALID_STATUS_TRANSITION", "INVALID_ARGUMENT":
		status = http.StatusBadRequest
	case "PAYMENT_CONFIRMATION_FAILED", "BILLING_KEY_ISSUE_FAILED", "BILLING_PAYMENT_FAILED", "PAYMENT_CANCEL_FAILED":
		status = http.StatusPaymentRequired
	case "INVALID_WEBHOOK_SIGNATURE":
		status = http.StatusUnauthorized
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

// ===== Payments =====

type checkoutRequest struct {
	Plan         model.Plan         `json:"plan"`
	BillingCycle model.BillingCycle `json:"billingCycle"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request body")
		return
	}

	info, err := s.checkout.Checkout(r.Context(), UserID(r.Context()), req.Plan, req.BillingCycle)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type confirmPaymentRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request body")
		return
	}
	if req.PaymentKey == "" || req.OrderID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "paymentKey, orderId and amount are required")
		return
	}

	sub, err := s.checkout.ConfirmPayment(r.Context(), UserID(r.Context()), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

type confirmBillingRequest struct {
	AuthKey     string `json:"authKey"`
	CustomerKey string `json:"customerKey"`
	OrderID     string `json:"orderId"`
}

func (s *Server) handleConfirmBilling(w http.ResponseWriter, r *http.Request) {
	var req confirmBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request body")
		return
	}
	if req.AuthKey == "" || req.CustomerKey == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "authKey, customerKey and orderId are required")
		return
	}

	sub, err := s.checkout.ConfirmBilling(r.Context(), UserID(r.Context()), req.AuthKey, req.CustomerKey, req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	payments, total, err := s.checkout.Invoices(r.Context(), UserID(r.Context()), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response := struct {
		Data   []*model.Payment `json:"data"`
		Total  int              `json:"total"`
		Limit  int              `json:"limit"`
		Offset int              `json:"offset"`
	}{
		Data:   payments,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	writeJSON(w, http.StatusOK, response)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "orderId is required")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "requested by customer"
	}

	p, err := s.checkout.RefundPayment(r.Context(), UserID(r.Context()), orderID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ===== Subscriptions =====

type subscriptionView struct {
	ID           string             `json:"id"`
	Plan         model.Plan         `json:"plan"`
	BillingCycle model.BillingCycle `json:"billingCycle"`
	Status       string             `json:"status"`
	StartDate    string             `json:"startDate,omitempty"`
	EndDate      string             `json:"endDate,omitempty"`
	AutoRenew    bool               `json:"autoRenew"`
}

func subscriptionResponse(sub *model.Subscription) *subscriptionView {
	v := &subscriptionView{
		ID:           sub.ID,
		Plan:         sub.Plan,
		BillingCycle: sub.BillingCycle,
		Status:       string(sub.Status),
		AutoRenew:    sub.AutoRenew,
	}
	if !sub.StartDate.IsZero() {
		v.StartDate = sub.StartDate.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if !sub.EndDate.IsZero() {
		v.EndDate = sub.EndDate.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

func (s *Server) handleMySubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.checkout.ActiveSubscription(r.Context(), UserID(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			// No paid subscription means the free tier.
			writeJSON(w, http.StatusOK, struct {
				Plan   model.Plan `json:"plan"`
				Status string     `json:"status"`
			}{Plan: model.PlanFree, Status: "NONE"})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

type cancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req cancelSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "requested by customer"
	}

	sub, err := s.checkout.CancelSubscription(r.Context(), UserID(r.Context()), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse(sub))
}

// ===== Webhooks =====

// handleTossWebhook verifies the gateway signature, parses the event, and
// hands it to the reconciler. Reconciliation failures are logged but still
// answered with 200 so the gateway retry loop stays quiet; the renewal and
// expiry jobs pick up anything the webhook path missed.
func (s *Server) handleTossWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "failed to read body")
		return
	}

	if s.webhookSecret != "" {
		sig := r.Header.Get("Toss-Signature")
		if !payment.VerifyWebhookSignature(rawBody, sig, s.webhookSecret) {
			metrics.IncWebhookRejected("bad_signature")
			writeError(w, http.StatusUnauthorized, "INVALID_WEBHOOK_SIGNATURE", "invalid webhook signature")
			return
		}
	}

	var ev model.WebhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		metrics.IncWebhookRejected("bad_json")
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid event payload")
		return
	}

	if err := s.reconciler.Apply(r.Context(), &ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", ev.EventType).
			Str("order_id", ev.Data.OrderID).
			Msg("webhook reconciliation failed")
	}
	writeJSON(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{Received: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
