package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisService implements distributed locks on Redis: SET NX PX to grant,
// compare-and-delete to release, and an INCR counter per name for fencing
// tokens. Required when more than one instance runs.
type RedisService struct {
	client *redis.Client
}

// NewRedisService creates a Redis-backed lock service
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

const lockKeyPrefix = "lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Acquire blocks up to waitTimeout for the named lock
func (s *RedisService) Acquire(ctx context.Context, name string, ttl, waitTimeout time.Duration) (*Lease, error) {
	key := lockKeyPrefix + name
	value := uuid.NewString()
	deadline := time.Now().Add(waitTimeout)

	for attempt := 0; ; attempt++ {
		ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			token, err := s.client.Incr(ctx, key+":fence").Result()
			if err != nil {
				// Without a fencing token the grant is unsafe; give it back.
				_, _ = releaseScript.Run(ctx, s.client, []string{key}, value).Result()
				return nil, fmt.Errorf("failed to fence lock %s: %w", name, err)
			}
			return &Lease{
				Name:      name,
				Token:     token,
				ExpiresAt: time.Now().Add(ttl),
				value:     value,
			}, nil
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

// Release frees the lock if this lease still holds it
func (s *RedisService) Release(ctx context.Context, lease *Lease) error {
	_, err := releaseScript.Run(ctx, s.client, []string{lockKeyPrefix + lease.Name}, lease.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lease.Name, err)
	}
	return nil
}

// Extend pushes the lease expiry out by ttl
func (s *RedisService) Extend(ctx context.Context, lease *Lease, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, s.client, []string{lockKeyPrefix + lease.Name}, lease.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", lease.Name, err)
	}
	if res == 0 {
		return ErrLeaseLost
	}
	lease.ExpiresAt = time.Now().Add(ttl)
	return nil
}

// Held reports whether the lease is still the current holder
func (s *RedisService) Held(ctx context.Context, lease *Lease) (bool, error) {
	value, err := s.client.Get(ctx, lockKeyPrefix+lease.Name).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock %s: %w", lease.Name, err)
	}
	return value == lease.value, nil
}
