package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"studycard-subscription/internal/domain/ports/adapter"
)

// TossGateway implements adapter.PaymentGateway against the Toss Payments
// REST API using direct HTTP calls. Authentication is HTTP basic with the
// secret key as username and an empty password.
type TossGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

var _ adapter.PaymentGateway = (*TossGateway)(nil)

func NewTossGateway(secretKey, baseURL string, timeout time.Duration) *TossGateway {
	if baseURL == "" {
		baseURL = "https://api.tosspayments.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TossGateway{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// tossPayment is the payment object shape shared by confirm and billing
// charge responses.
type tossPayment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"totalAmount"`
	Method      string `json:"method"`
	ApprovedAt  string `json:"approvedAt"`
}

type tossBillingKey struct {
	BillingKey  string `json:"billingKey"`
	CustomerKey string `json:"customerKey"`
}

type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *TossGateway) IssueBillingKey(ctx context.Context, authKey, customerKey string) (*adapter.BillingKeyResult, error) {
	body := map[string]string{
		"authKey":     authKey,
		"customerKey": customerKey,
	}
	var out tossBillingKey
	if err := g.post(ctx, "/v1/billing/authorizations/issue", body, &out); err != nil {
		return nil, err
	}
	return &adapter.BillingKeyResult{BillingKey: out.BillingKey, CustomerKey: out.CustomerKey}, nil
}

func (g *TossGateway) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.PaymentResult, error) {
	body := map[string]any{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	}
	var out tossPayment
	if err := g.post(ctx, "/v1/payments/confirm", body, &out); err != nil {
		return nil, err
	}
	return toResult(&out), nil
}

func (g *TossGateway) ChargeBillingKey(ctx context.Context, billingKey, customerKey, orderID string, amount int64, orderName string) (*adapter.PaymentResult, error) {
	body := map[string]any{
		"customerKey": customerKey,
		"orderId":     orderID,
		"amount":      amount,
		"orderName":   orderName,
	}
	var out tossPayment
	if err := g.post(ctx, "/v1/billing/"+billingKey, body, &out); err != nil {
		return nil, err
	}
	return toResult(&out), nil
}

func (g *TossGateway) CancelPayment(ctx context.Context, paymentKey, reason string) error {
	body := map[string]string{"cancelReason": reason}
	return g.post(ctx, "/v1/payments/"+paymentKey+"/cancel", body, nil)
}

// post sends a JSON request and decodes the response. A non-2xx answer comes
// back as *adapter.GatewayError; transport failures come back as plain
// errors so callers can tell a decline from a timeout.
func (g *TossGateway) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(g.secretKey+":")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr tossError
		if err := json.Unmarshal(raw, &gwErr); err != nil {
			gwErr = tossError{Code: "UNKNOWN", Message: string(raw)}
		}
		return &adapter.GatewayError{HTTPStatus: resp.StatusCode, Code: gwErr.Code, Message: gwErr.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}

func toResult(p *tossPayment) *adapter.PaymentResult {
	approvedAt, _ := time.Parse(time.RFC3339, p.ApprovedAt)
	return &adapter.PaymentResult{
		PaymentKey:  p.PaymentKey,
		OrderID:     p.OrderID,
		Status:      p.Status,
		TotalAmount: p.TotalAmount,
		Method:      p.Method,
		ApprovedAt:  approvedAt,
	}
}
