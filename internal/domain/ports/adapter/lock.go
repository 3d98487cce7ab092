package adapter

import (
	"context"
	"time"
)

// Locker is cross-instance mutual exclusion for scheduled jobs. TryLock
// returns an empty token when another instance holds the key; that is a skip,
// not a failure. The token is opaque and required for Unlock so an instance
// can never release a lock the TTL already handed to someone else.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
