package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is the in-process cache backend used when no CACHE_URL is
// configured. Entries expire after the TTL the backend was built with;
// per-call TTLs are a distributed-backend feature.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

const memoryCacheSize = 4096

// NewMemory creates an in-process cache backend whose entries live for ttl
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, []byte](memoryCacheSize, nil, ttl)}
}

// Get returns the cached value and whether the key was present
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.lru.Get(key)
	return value, ok, nil
}

// SetEx stores value under key; the backend-wide TTL applies
func (m *Memory) SetEx(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, value)
	return nil
}

// Del removes keys
func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

// DelPrefix removes every key with the given prefix
func (m *Memory) DelPrefix(_ context.Context, prefix string) error {
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
	return nil
}
