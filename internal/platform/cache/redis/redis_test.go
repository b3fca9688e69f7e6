package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache/redis"
)

func newTestCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	c, err := redis.New(&redis.Config{
		Addr:        s.Addr(),
		KeyPrefix:   "test:",
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestNew_FailFastUnreachable(t *testing.T) {
	cfg := &redis.Config{
		Addr:        "localhost:59999",
		DialTimeout: 100 * time.Millisecond,
	}

	if _, err := redis.New(cfg); err == nil {
		t.Fatal("expected error when connecting to unreachable Redis, got nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := redis.DefaultConfig()

	if cfg.Addr != "localhost:6379" {
		t.Errorf("expected default addr localhost:6379, got %s", cfg.Addr)
	}
	if cfg.DB != 0 {
		t.Errorf("expected default DB 0, got %d", cfg.DB)
	}
	if cfg.KeyPrefix != "waitlist:" {
		t.Errorf("expected default prefix waitlist:, got %s", cfg.KeyPrefix)
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "stats", []byte(`{"total":3}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !s.Exists("test:stats") {
		t.Fatal("expected prefixed key in server")
	}

	got, err := c.Get(ctx, "stats")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"total":3}` {
		t.Errorf("unexpected value %q", got)
	}

	if err := c.Delete(ctx, "stats"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "stats"); err != cache.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCache_TTL(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := s.TTL("test:k"); ttl != 30*time.Second {
		t.Errorf("expected TTL 30s, got %v", ttl)
	}

	s.FastForward(31 * time.Second)

	if _, err := c.Get(ctx, "k"); !cache.IsMiss(err) {
		t.Errorf("expected miss after expiry, got %v", err)
	}
}

func TestRegisteredDriver(t *testing.T) {
	s := miniredis.RunT(t)

	c, err := cache.NewFromConfig("redis", map[string]map[string]any{
		"redis": {"addr": s.Addr(), "dial_timeout_ms": int64(500)},
	})
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.(*redis.Cache); !ok {
		t.Errorf("expected *redis.Cache, got %T", c)
	}
}

func TestRegisteredDriver_UnknownKey(t *testing.T) {
	_, err := cache.NewFromConfig("redis", map[string]map[string]any{
		"redis": {"adress": "typo:6379"},
	})
	if err == nil {
		t.Fatal("expected error for unknown config key")
	}
}
