// internal/store/lock.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lock is a short-TTL lease built on SetIfAbsent. The holder token guards
// release so an expired holder cannot delete a successor's lease. Callers
// that fail to acquire must poll once after a short backoff and re-read the
// protected state rather than spin.
type Lock struct {
	store Store
	key   string
	token string
	ttl   time.Duration
}

// NewLock prepares a lease on key with the given TTL. Nothing is acquired
// until Acquire is called.
func NewLock(s Store, key string, ttl time.Duration) *Lock {
	return &Lock{
		store: s,
		key:   key,
		token: uuid.New().String(),
		ttl:   ttl,
	}
}

// Acquire attempts to take the lease and reports whether this caller holds it.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	return l.store.SetIfAbsent(ctx, l.key, l.token, l.ttl)
}

// Release deletes the lease only if this caller still holds it.
func (l *Lock) Release(ctx context.Context) error {
	val, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return err
	}
	if !ok || val != l.token {
		// Lease expired or taken over; nothing to release.
		return nil
	}
	return l.store.Delete(ctx, l.key)
}

// WaitOnce blocks for the backoff period or until the context is done.
// It is the non-holder's single poll before re-reading protected state.
func WaitOnce(ctx context.Context, backoff time.Duration) error {
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
