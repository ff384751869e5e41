// Package cache provides the TTL'd key/value cache in front of the balance
// store. The cache is an optimization only: every read path has a
// store-backed fallback and cache failures are never surfaced to callers.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache keys used by the core.
const (
	userViewPrefix    = "bal:user:"
	scopeMatrixPrefix = "bal:scope:"
	userPlanPrefix    = "set:user:"
	scopePlanPrefix   = "set:scope:"
)

// UserViewKey caches a user's aggregated balance view.
func UserViewKey(userID string) string { return userViewPrefix + userID }

// ScopeMatrixKey caches a scope's pairwise matrix.
func ScopeMatrixKey(scopeID string) string { return scopeMatrixPrefix + scopeID }

// UserPlanKey caches a user's global settlement plan.
func UserPlanKey(userID string) string { return userPlanPrefix + userID }

// ScopePlanKey caches a scope's settlement plan.
func ScopePlanKey(scopeID string) string { return scopePlanPrefix + scopeID }

// Backend is a TTL'd key/value store. Implementations: Redis, in-process
// LRU, and Noop when caching is disabled.
type Backend interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value under key for ttl.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// DelPrefix removes every key with the given prefix. O(keyspace);
	// prefer targeted Del.
	DelPrefix(ctx context.Context, prefix string) error
}

// Layer wraps a Backend with single-flight on computes and swallows backend
// failures: a broken cache degrades to computing every time, never to a
// failed request.
type Layer struct {
	backend Backend
	group   singleflight.Group
	log     *zap.Logger
}

// NewLayer creates a cache layer over the given backend
func NewLayer(backend Backend, log *zap.Logger) *Layer {
	return &Layer{backend: backend, log: log}
}

// Get returns the cached value if present. Backend errors read as a miss.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		l.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return value, ok
}

// GetOrCompute returns the cached value for key, running producer exactly
// once across concurrent callers on a miss and caching its result.
func (l *Layer) GetOrCompute(ctx context.Context, key string, ttl time.Duration, producer func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := l.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := l.group.Do(key, func() (interface{}, error) {
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.backend.SetEx(ctx, key, value, ttl); err != nil {
			l.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// Set stores a value best-effort. Used by fresh reads to refresh the cache;
// failures are logged and dropped.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := l.backend.SetEx(ctx, key, value, ttl); err != nil {
		l.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Del removes keys. The error is returned so invalidation jobs can retry.
func (l *Layer) Del(ctx context.Context, keys ...string) error {
	return l.backend.Del(ctx, keys...)
}

// DelPrefix removes every key with the given prefix.
func (l *Layer) DelPrefix(ctx context.Context, prefix string) error {
	return l.backend.DelPrefix(ctx, prefix)
}

// Noop is the backend used when caching is disabled: every read misses.
type Noop struct{}

// NewNoop creates a disabled cache backend
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Get(context.Context, string) ([]byte, bool, error)           { return nil, false, nil }
func (*Noop) SetEx(context.Context, string, []byte, time.Duration) error { return nil }
func (*Noop) Del(context.Context, ...string) error                       { return nil }
func (*Noop) DelPrefix(context.Context, string) error                    { return nil }
