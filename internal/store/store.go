// Package store provides the key-value storage the cart is persisted to.
package store

import "context"

// KV is a string key-value store.
// It abstracts the underlying medium, allowing for different implementations (e.g., in-memory, sqlite, redis, postgres).
type KV interface {
	// Get returns the value stored under key.
	// Returns ErrKeyNotFound if nothing is stored under key.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Ping checks that the underlying medium is reachable.
	Ping(ctx context.Context) error

	// Close releases the resources held by the store.
	Close() error
}
