// Package lock provides named exclusive locks with TTL. Every scope mutation
// in the ledger is serialized by one of these locks.
package lock

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Common errors
var (
	ErrLockTimeout = errors.New("lock acquisition timed out")
	ErrLeaseLost   = errors.New("lock lease no longer held")
)

// Lease represents a granted lock. Token is a fencing token: it increases
// monotonically per lock name across grants, so a holder that outlived its
// TTL can be detected before it commits.
type Lease struct {
	Name      string
	Token     int64
	ExpiresAt time.Time

	// value uniquely identifies this holder so release and extend cannot
	// touch a lock re-granted to someone else.
	value string
}

// Service grants at most one holder per name at a time.
type Service interface {
	// Acquire blocks up to waitTimeout for the named lock, retrying with
	// jitter. Returns ErrLockTimeout when the wait budget runs out.
	Acquire(ctx context.Context, name string, ttl, waitTimeout time.Duration) (*Lease, error)

	// Release frees the lock. Idempotent; a lease that already expired or
	// was re-granted is silently ignored.
	Release(ctx context.Context, lease *Lease) error

	// Extend pushes the lease expiry out by ttl. Returns ErrLeaseLost if
	// the lease is no longer held.
	Extend(ctx context.Context, lease *Lease, ttl time.Duration) error

	// Held reports whether the lease is still the current holder. Callers
	// check this before committing writes made under the lease.
	Held(ctx context.Context, lease *Lease) (bool, error)
}

// ScopeLockName returns the lock name serializing mutations of a group scope.
func ScopeLockName(scopeID string) string {
	return "scope:" + scopeID
}

// DirectLockName returns the lock name serializing direct-balance mutations
// where payerID pays.
func DirectLockName(payerID string) string {
	return "direct:" + payerID
}

// retryDelay returns a jittered backoff for acquisition attempt n, bounded so
// contending callers cannot livelock in step with each other.
func retryDelay(attempt int) time.Duration {
	base := 10 * time.Millisecond << uint(min(attempt, 5))
	return base/2 + time.Duration(rand.Int63n(int64(base)))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
