// internal/store/store.go
package store

import (
	"context"
	"time"
)

// Store is the complete persistence surface of the consultation engine.
// Both adapters (in-process memory, Redis) satisfy the same contract so the
// backend is selected once by configuration, never by conditional logic in
// the core.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent stores value only when key does not exist yet and reports
	// whether the write happened. This is the idempotency and lease primitive.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Append pushes value onto the tail of the list at listKey.
	Append(ctx context.Context, listKey, value string) error

	// GetList returns all elements of the list at listKey in insertion order.
	GetList(ctx context.Context, listKey string) ([]string, error)

	// SetAdd / SetRemove / SetMembers manage membership sets.
	SetAdd(ctx context.Context, setKey, member string) error
	SetRemove(ctx context.Context, setKey, member string) error
	SetMembers(ctx context.Context, setKey string) ([]string, error)

	// Delete removes a key (value, list, or set).
	Delete(ctx context.Context, key string) error
}
