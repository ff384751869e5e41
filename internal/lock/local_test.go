package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAcquireRelease(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "scope:g1", time.Second, time.Second)
	require.NoError(t, err)

	held, err := s.Held(ctx, lease)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, s.Release(ctx, lease))
	held, err = s.Held(ctx, lease)
	require.NoError(t, err)
	assert.False(t, held)

	// Release is idempotent.
	require.NoError(t, s.Release(ctx, lease))
}

func TestLocalMutualExclusion(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	first, err := s.Acquire(ctx, "scope:g1", time.Second, time.Second)
	require.NoError(t, err)

	// A second caller with a tiny wait budget times out.
	_, err = s.Acquire(ctx, "scope:g1", time.Second, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// A different name is independent.
	other, err := s.Acquire(ctx, "scope:g2", time.Second, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, other))

	require.NoError(t, s.Release(ctx, first))
}

func TestLocalWaitersEventuallyAcquire(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "scope:g1", time.Second, time.Second)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var holders int
	errs := make(chan error, workers)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			l, err := s.Acquire(ctx, "scope:g1", 200*time.Millisecond, 5*time.Second)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			holders++
			mu.Unlock()
			_ = s.Release(ctx, l)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Release(ctx, lease))
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("acquire failed: %v", err)
	}
	assert.Equal(t, workers, holders)
}

func TestLocalTTLExpiryAndFencing(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	stale, err := s.Acquire(ctx, "scope:g1", 20*time.Millisecond, time.Second)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	// TTL elapsed: a new holder gets the lock with a larger fencing token.
	fresh, err := s.Acquire(ctx, "scope:g1", time.Second, time.Second)
	require.NoError(t, err)
	assert.Greater(t, fresh.Token, stale.Token)

	// The stale lease is detectably lost.
	held, err := s.Held(ctx, stale)
	require.NoError(t, err)
	assert.False(t, held)
	assert.ErrorIs(t, s.Extend(ctx, stale, time.Second), ErrLeaseLost)

	require.NoError(t, s.Release(ctx, fresh))
}

func TestLocalExtend(t *testing.T) {
	s := NewLocalService()
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "scope:g1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Extend(ctx, lease, time.Second))

	time.Sleep(80 * time.Millisecond)

	// Still held past the original TTL thanks to the extension.
	held, err := s.Held(ctx, lease)
	require.NoError(t, err)
	assert.True(t, held)
}
