package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across instances. The token refresher
// uses it per tenant so concurrent refreshes usually collapse into one
// provider call. Losing the lock is never fatal: redundant refreshes are
// functionally equivalent, just wasted provider calls.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if acquired, false if already held by another instance.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
