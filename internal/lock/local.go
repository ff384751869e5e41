package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalService implements locks inside one process. It is only safe when
// exactly one instance runs; main refuses to start in multi-instance mode
// with this backend.
type LocalService struct {
	mu    sync.Mutex
	locks map[string]*localLock
	fence map[string]int64
}

type localLock struct {
	value     string
	expiresAt time.Time
}

// NewLocalService creates a process-local lock service
func NewLocalService() *LocalService {
	return &LocalService{
		locks: make(map[string]*localLock),
		fence: make(map[string]int64),
	}
}

// Acquire blocks up to waitTimeout for the named lock
func (s *LocalService) Acquire(ctx context.Context, name string, ttl, waitTimeout time.Duration) (*Lease, error) {
	value := uuid.NewString()
	deadline := time.Now().Add(waitTimeout)

	for attempt := 0; ; attempt++ {
		if lease := s.tryAcquire(name, value, ttl); lease != nil {
			return lease, nil
		}

		delay := retryDelay(attempt)
		if time.Now().Add(delay).After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *LocalService) tryAcquire(name, value string, ttl time.Duration) *Lease {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[name]; ok && time.Now().Before(held.expiresAt) {
		return nil
	}

	s.fence[name]++
	s.locks[name] = &localLock{value: value, expiresAt: time.Now().Add(ttl)}
	return &Lease{
		Name:      name,
		Token:     s.fence[name],
		ExpiresAt: time.Now().Add(ttl),
		value:     value,
	}
}

// Release frees the lock if this lease still holds it
func (s *LocalService) Release(_ context.Context, lease *Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[lease.Name]; ok && held.value == lease.value {
		delete(s.locks, lease.Name)
	}
	return nil
}

// Extend pushes the lease expiry out by ttl
func (s *LocalService) Extend(_ context.Context, lease *Lease, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.locks[lease.Name]
	if !ok || held.value != lease.value || time.Now().After(held.expiresAt) {
		return ErrLeaseLost
	}
	held.expiresAt = time.Now().Add(ttl)
	lease.ExpiresAt = held.expiresAt
	return nil
}

// Held reports whether the lease is still the current holder
func (s *LocalService) Held(_ context.Context, lease *Lease) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.locks[lease.Name]
	return ok && held.value == lease.value && time.Now().Before(held.expiresAt), nil
}
