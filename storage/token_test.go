package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	info, err := InspectToken(signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()}))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Subject != "user-1" || !info.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected info: %#v", info)
	}
	if info.Expired(time.Now()) {
		t.Fatal("token should not be expired yet")
	}

	strapi, err := InspectToken(signedToken(t, jwt.MapClaims{"id": 12}))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if strapi.Subject != "12" || !strapi.ExpiresAt.IsZero() || strapi.Expired(time.Now()) {
		t.Fatalf("unexpected strapi info: %#v", strapi)
	}

	if _, err := InspectToken("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "default.token")
	store := NewFileTokenStore(path)

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := store.Save(ctx, "a.b.c"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", perm)
	}
	token, err := store.Load(ctx)
	if err != nil || token != "a.b.c" {
		t.Fatalf("load: %q %v", token, err)
	}
	if err := store.Save(ctx, "d.e.f"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if token, _ := store.Load(ctx); token != "d.e.f" {
		t.Fatalf("expected overwritten token, got %q", token)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken after clear, got %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clearing twice should succeed: %v", err)
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisTokenStoreUsesTokenExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisTokenStore(client, "work")

	token := signedToken(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(30 * time.Minute).Unix()})
	if err := store.Save(ctx, token); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(tokenKeyPrefix + "work"); ttl <= 0 || ttl > 30*time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
	got, err := store.Load(ctx)
	if err != nil || got != token {
		t.Fatalf("load: %q %v", got, err)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected token to expire, got %v", err)
	}
}

func TestRedisTokenStoreOpaqueTokenAndClear(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	store := NewRedisTokenStore(client, "")

	if err := store.Save(ctx, "opaque"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL(tokenKeyPrefix + "default"); ttl != 0 {
		t.Fatalf("opaque tokens should not expire, ttl=%v", ttl)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestRedisTokenStoreRejectsExpiredToken(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisTokenStore(client, "old")

	token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	if err := store.Save(context.Background(), token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
