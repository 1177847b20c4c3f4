// Package kv provides a key-value store abstraction for short-lived
// counters and markers. Backends (Valkey/Redis, in-memory) are swappable
// without changing callers.
package kv

import (
	"context"
	"time"
)

// Store defines a minimal key-value interface. Keys are strings, values are
// byte slices. All writes support TTL.
type Store interface {
	// Set stores a value with the given key and TTL.
	// If TTL is 0, the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns ErrNotFound if key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// SetNX sets a value only if the key doesn't exist (atomic).
	// Returns true if the key was set, false if it already existed.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Incr atomically increments an integer counter and returns the new
	// value. The TTL is applied when the counter is created.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close closes the connection to the store.
	Close() error
}
