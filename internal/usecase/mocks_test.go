// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"studycard-subscription/internal/domain"
	"studycard-subscription/internal/domain/model"
	"studycard-subscription/internal/domain/ports/adapter"
	"studycard-subscription/internal/domain/ports/repository"
)

// memPaymentRepo is a small in-memory implementation used by unit tests.
// UpdateStatusIfPending takes the same lock as everything else, so the
// compare-and-set is atomic the way the SQL version is.
type memPaymentRepo struct {
	mu      sync.Mutex
	byOrder map[string]*model.Payment
	saveErr error // used by tests to simulate save failures
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byOrder: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirror the unique index on order_id: a second row under the same order
	// is rejected, an upsert of the same row is not.
	if existing, ok := m.byOrder[p.OrderID]; ok && existing.ID != p.ID {
		return domain.ErrOperationFailed
	}
	cp := *p
	m.byOrder[p.OrderID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByPaymentKey(ctx context.Context, tx repository.Tx, paymentKey string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if p.PaymentKey != nil && *p.PaymentKey == paymentKey {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, orderID string, status model.PaymentStatus, paymentKey, method *string, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byOrder[orderID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if paymentKey != nil {
		p.PaymentKey = paymentKey
	}
	if method != nil {
		p.Method = method
	}
	if paidAt != nil {
		p.PaidAt = paidAt
		p.UpdatedAt = *paidAt
	}
	return true, nil
}

func (m *memPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, reason *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if p.ID == id {
			p.Status = status
			switch status {
			case model.PaymentStatusCanceled:
				p.CancelReason = reason
				p.CanceledAt = &at
			case model.PaymentStatusFailed:
				p.FailReason = reason
			}
			p.UpdatedAt = at
			return nil
		}
	}
	return domain.ErrPaymentNotFound
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byOrder {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *memPaymentRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.byOrder {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

// memSubscriptionRepo mirrors the one-active-row-per-user constraint the
// partial unique index enforces in postgres.
type memSubscriptionRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Subscription
	saveErr error
	// findExpiredFunc lets a test feed the sweep a stale listing, the way two
	// workers racing past an expired lock both would.
	findExpiredFunc func(now time.Time) ([]*model.Subscription, error)
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{byID: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == model.SubscriptionStatusActive {
		for _, other := range m.byID {
			if other.ID != s.ID && other.UserID == s.UserID && other.Status == model.SubscriptionStatusActive {
				return domain.ErrActiveSubscriptionExists
			}
		}
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.UserID == userID && s.IsActive(time.Now()) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *memSubscriptionRepo) FindByBillingKey(ctx context.Context, tx repository.Tx, billingKey string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.BillingKey != nil && *s.BillingKey == billingKey {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (m *memSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.byID {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) FindRenewable(ctx context.Context, tx repository.Tx, now, horizon time.Time) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.byID {
		if s.RenewableWithin(now, horizon) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.Subscription, error) {
	if m.findExpiredFunc != nil {
		return m.findExpiredFunc(now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.byID {
		if s.Status == model.SubscriptionStatusActive && s.EndDate.Before(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) ExpireIfActive(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = model.SubscriptionStatusExpired
	s.UpdatedAt = at
	return true, nil
}

// mockGateway answers from per-call hooks so each test scripts only what it
// needs.
type mockGateway struct {
	issueFunc   func(ctx context.Context, authKey, customerKey string) (*adapter.BillingKeyResult, error)
	confirmFunc func(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.PaymentResult, error)
	chargeFunc  func(ctx context.Context, billingKey, customerKey, orderID string, amount int64, orderName string) (*adapter.PaymentResult, error)
	cancelFunc  func(ctx context.Context, paymentKey, reason string) error
}

func (g *mockGateway) IssueBillingKey(ctx context.Context, authKey, customerKey string) (*adapter.BillingKeyResult, error) {
	if g.issueFunc != nil {
		return g.issueFunc(ctx, authKey, customerKey)
	}
	return &adapter.BillingKeyResult{BillingKey: "bkey_test", CustomerKey: customerKey}, nil
}

func (g *mockGateway) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount int64) (*adapter.PaymentResult, error) {
	if g.confirmFunc != nil {
		return g.confirmFunc(ctx, paymentKey, orderID, amount)
	}
	return &adapter.PaymentResult{PaymentKey: paymentKey, OrderID: orderID, Status: "DONE", TotalAmount: amount, Method: "CARD", ApprovedAt: time.Now()}, nil
}

func (g *mockGateway) ChargeBillingKey(ctx context.Context, billingKey, customerKey, orderID string, amount int64, orderName string) (*adapter.PaymentResult, error) {
	if g.chargeFunc != nil {
		return g.chargeFunc(ctx, billingKey, customerKey, orderID, amount, orderName)
	}
	return &adapter.PaymentResult{PaymentKey: "pk_" + orderID, OrderID: orderID, Status: "DONE", TotalAmount: amount, Method: "CARD", ApprovedAt: time.Now()}, nil
}

func (g *mockGateway) CancelPayment(ctx context.Context, paymentKey, reason string) error {
	if g.cancelFunc != nil {
		return g.cancelFunc(ctx, paymentKey, reason)
	}
	return nil
}

// memNotifier records notification triggers for assertions.
type memNotifier struct {
	mu        sync.Mutex
	completed []string // order IDs
	failed    []string // order IDs
	expired   []string // subscription IDs
}

func (n *memNotifier) PaymentCompleted(ctx context.Context, p *model.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, p.OrderID)
}

func (n *memNotifier) PaymentFailed(ctx context.Context, userID, orderID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, orderID)
}

func (n *memNotifier) SubscriptionExpired(ctx context.Context, s *model.Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, s.ID)
}

// noopTxManager runs the function without a real transaction; the in-memory
// repos are already atomic per call.
type noopTxManager struct{}

func (noopTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger so tests stay quiet.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// testDeps bundles a fully wired orchestrator over in-memory infra.
type testDeps struct {
	payments *memPaymentRepo
	subs     *memSubscriptionRepo
	gateway  *mockGateway
	notifier *memNotifier
	ledger   *PaymentLedger
	store    *SubscriptionStore
	checkout *CheckoutOrchestrator
	webhook  *WebhookReconciler
}

func newTestDeps() *testDeps {
	d := &testDeps{
		payments: newMemPaymentRepo(),
		subs:     newMemSubscriptionRepo(),
		gateway:  &mockGateway{},
		notifier: &memNotifier{},
	}
	log := newTestLogger()
	d.ledger = NewPaymentLedger(d.payments, noopTxManager{}, NewOrderIDGenerator(), log)
	d.store = NewSubscriptionStore(d.subs, d.notifier, log)
	d.checkout = NewCheckoutOrchestrator(d.ledger, d.store, d.gateway, d.notifier, log)
	d.webhook = NewWebhookReconciler(d.ledger, d.store, d.checkout, log)
	return d
}
