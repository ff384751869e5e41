package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLayer(t *testing.T) *Layer {
	t.Helper()
	return NewLayer(NewMemory(time.Minute), zap.NewNop())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "bal:user:u1", UserViewKey("u1"))
	assert.Equal(t, "bal:scope:g1", ScopeMatrixKey("g1"))
	assert.Equal(t, "set:user:u1", UserPlanKey("u1"))
	assert.Equal(t, "set:scope:g1", ScopePlanKey("g1"))
}

func TestGetOrComputeCachesResult(t *testing.T) {
	l := testLayer(t)
	ctx := context.Background()

	var calls int32
	producer := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("v"), nil
	}

	for i := 0; i < 3; i++ {
		value, err := l.GetOrCompute(ctx, "bal:user:u1", time.Minute, producer)
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), value)
	}
	assert.Equal(t, int32(1), calls)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	l := testLayer(t)
	ctx := context.Background()

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	producer := func(context.Context) ([]byte, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return []byte("v"), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			value, err := l.GetOrCompute(ctx, "k", time.Minute, producer)
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		}()
	}

	<-started
	time.Sleep(10 * time.Millisecond) // let the rest pile onto the flight
	close(release)
	wg.Wait()

	// Callers that raced the first compute share its flight. A caller
	// arriving after completion hits the cache instead.
	assert.LessOrEqual(t, calls, int32(2))
}

func TestGetOrComputeProducerError(t *testing.T) {
	l := testLayer(t)
	ctx := context.Background()

	wantErr := errors.New("store down")
	_, err := l.GetOrCompute(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing was cached; the next call recomputes.
	_, ok := l.Get(ctx, "k")
	assert.False(t, ok)
}

func TestDelAndDelPrefix(t *testing.T) {
	l := testLayer(t)
	ctx := context.Background()

	for _, key := range []string{UserViewKey("u1"), UserViewKey("u2"), ScopeMatrixKey("g1")} {
		_, err := l.GetOrCompute(ctx, key, time.Minute, func(context.Context) ([]byte, error) {
			return []byte("v"), nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, l.Del(ctx, UserViewKey("u1")))
	_, ok := l.Get(ctx, UserViewKey("u1"))
	assert.False(t, ok)
	_, ok = l.Get(ctx, UserViewKey("u2"))
	assert.True(t, ok)

	require.NoError(t, l.DelPrefix(ctx, "bal:user:"))
	_, ok = l.Get(ctx, UserViewKey("u2"))
	assert.False(t, ok)
	_, ok = l.Get(ctx, ScopeMatrixKey("g1"))
	assert.True(t, ok)
}

func TestNoopBackendAlwaysMisses(t *testing.T) {
	l := NewLayer(NewNoop(), zap.NewNop())
	ctx := context.Background()

	var calls int32
	for i := 0; i < 3; i++ {
		_, err := l.GetOrCompute(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
			atomic.AddInt32(&calls, 1)
			return []byte("v"), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), calls)
}

// failingBackend simulates an unavailable cache: reads and writes error.
type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache unavailable")
}
func (failingBackend) SetEx(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unavailable")
}
func (failingBackend) Del(context.Context, ...string) error {
	return errors.New("cache unavailable")
}
func (failingBackend) DelPrefix(context.Context, string) error {
	return errors.New("cache unavailable")
}

func TestBrokenCacheFallsThroughToProducer(t *testing.T) {
	l := NewLayer(failingBackend{}, zap.NewNop())
	ctx := context.Background()

	value, err := l.GetOrCompute(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), value)
}
