package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates periodic work across broker replicas.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock.
	// Returns false if another instance holds it.
	// The ttl is honoured where the backend supports expiry.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Safe to call when the lock is not held.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
