package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "taskboard:create"

// Deduper remembers idempotency keys of create requests already accepted.
type Deduper interface {
	Add(ctx context.Context, scope, key string) (bool, error)
	Remove(ctx context.Context, scope, key string) error
}

// RedisDeduper keeps idempotency keys in Redis so several local servers
// sharing a profile do not create the same task twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", scope, dedupeKeyPrefix, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, scope, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, key), 1, r.ttl).Result()
}

// Remove forgets a key after the create it guarded failed, so the client
// may retry.
func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}
