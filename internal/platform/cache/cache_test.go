package cache_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache"
	_ "github.com/MahdiBaghbani/waitlist-go/internal/platform/cache/loader"
)

func TestAvailableDrivers(t *testing.T) {
	got := cache.AvailableDrivers()
	for _, want := range []string{"memory", "redis"} {
		if !slices.Contains(got, want) {
			t.Errorf("driver %q not registered (have %v)", want, got)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("AvailableDrivers() not sorted: %v", got)
	}
}

func TestNewFromConfig_UnknownDriver(t *testing.T) {
	_, err := cache.NewFromConfig("memcached", nil)
	if !errors.Is(err, cache.ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
	if !strings.Contains(err.Error(), "memory") || !strings.Contains(err.Error(), "redis") {
		t.Errorf("error should list the registered drivers: %v", err)
	}
}

func TestNewFromConfig_Memory(t *testing.T) {
	c, err := cache.NewFromConfig("memory", map[string]map[string]any{
		"memory": {"default_ttl_seconds": 5},
	})
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Errorf("Get() = %q, %v", got, err)
	}
	if _, err := c.Get(ctx, "missing"); !cache.IsMiss(err) {
		t.Errorf("expected a miss, got %v", err)
	}
}
