package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "taskboard:token:"

// RedisTokenStore keeps the token in Redis so several machines or containers
// can share one login. Entries expire together with the token.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisTokenStore creates a store for the given profile.
func NewRedisTokenStore(client *redis.Client, profile string) *RedisTokenStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisTokenStore{client: client, key: tokenKeyPrefix + profile, now: time.Now}
}

func (r *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return token, nil
}

// Save stores the token. A token with an exp claim gets a matching TTL; an
// already expired token is rejected.
func (r *RedisTokenStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if info, err := InspectToken(token); err == nil && !info.ExpiresAt.IsZero() {
		ttl = info.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return errors.New("token already expired")
		}
	}
	return r.client.Set(ctx, r.key, token, ttl).Err()
}

func (r *RedisTokenStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
