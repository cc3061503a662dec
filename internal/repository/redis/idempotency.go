// Package redis implements repository.IdempotencyStore on Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/zoobzio/clockz"
)

const keyPrefix = "paygate:"

// IdempotencyStore keeps processed keys as Redis strings with a TTL. The value
// is the unix time the key was first recorded.
type IdempotencyStore struct {
	client goredis.Cmdable
	ttl    time.Duration
	clock  clockz.Clock
}

// NewIdempotencyStore creates a store whose entries expire after ttl. A nil
// clock uses the real clock.
func NewIdempotencyStore(client goredis.Cmdable, ttl time.Duration, clock clockz.Clock) *IdempotencyStore {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &IdempotencyStore{client: client, ttl: ttl, clock: clock}
}

// MarkIfAbsent records key with SET NX. An existing key keeps its original
// value and expiry.
func (s *IdempotencyStore) MarkIfAbsent(ctx context.Context, key string) (bool, error) {
	added, err := s.client.SetNX(ctx, keyPrefix+key, s.clock.Now().UTC().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return added, nil
}
