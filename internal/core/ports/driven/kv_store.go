package driven

import (
	"context"
	"time"
)

// KVStore is an expiring key-value store holding every timed protocol record
// (state, authorization codes, tokens, client registrations).
type KVStore interface {
	// Put stores value under key, replacing any existing value.
	// The entry expires after ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetAndDelete atomically returns and removes the value stored under key.
	// Two concurrent callers can never both receive the value.
	// Returns domain.ErrNotFound if the key does not exist or has expired.
	GetAndDelete(ctx context.Context, key string) ([]byte, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}

// ExpiredEntrySweeper is implemented by stores that do not evict expired
// entries on their own.
type ExpiredEntrySweeper interface {
	// Cleanup removes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int64, error)
}
