package usecase

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderIDGenerator produces globally unique, gateway-facing idempotency keys.
// ULIDs are lexicographically sortable by creation time, which keeps gateway
// dashboards and order lookups in a sane order. Monotonic entropy guarantees
// uniqueness within the same millisecond on one instance; the random
// component covers the fleet.
type OrderIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewOrderIDGenerator() *OrderIDGenerator {
	return &OrderIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *OrderIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return "order_" + id.String()
}

// RenewalOrderID derives the idempotency key for one renewal period. Every
// sweep that picks up the same subscription with the same window end computes
// the same id, so re-entrant runs after a lock TTL expiry share one payment
// row and at most one gateway charge.
func RenewalOrderID(subscriptionID string, periodEnd time.Time) string {
	return "renew_" + strings.ReplaceAll(subscriptionID, "-", "") + "_" + periodEnd.UTC().Format("20060102150405")
}
