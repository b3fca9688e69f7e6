// Package memory provides a process-local cache driver with TTL expiry.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache"
)

func init() {
	cache.RegisterDriver("memory", func(raw map[string]any) (cache.Cache, error) {
		cfg := DefaultConfig()
		if len(raw) > 0 {
			if err := mapstructure.WeakDecode(raw, cfg); err != nil {
				return nil, fmt.Errorf("memory cache config: %w", err)
			}
		}
		return NewWithConfig(cfg), nil
	})
}

// Config holds [cache.drivers.memory] settings.
type Config struct {
	DefaultTTLSeconds      int `mapstructure:"default_ttl_seconds"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds"`

	// MaxEntries bounds the cache; 0 means unbounded. When full, the entry
	// closest to expiry is evicted.
	MaxEntries int `mapstructure:"max_entries"`
}

// DefaultConfig returns a one-minute default TTL swept every five minutes.
func DefaultConfig() *Config {
	return &Config{
		DefaultTTLSeconds:      60,
		CleanupIntervalSeconds: 300,
		MaxEntries:             1024,
	}
}

type entry struct {
	value    []byte
	deadline time.Time
}

// Cache is a mutex-guarded map of byte slices with per-key deadlines.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	maxEntries int
	now        func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates an unbounded cache. cleanupInterval of 0 disables sweeping;
// expired keys are then only dropped when overwritten or deleted.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return newCache(defaultTTL, cleanupInterval, 0, time.Now)
}

// NewWithConfig creates a cache from driver settings.
func NewWithConfig(cfg *Config) *Cache {
	return newCache(
		time.Duration(cfg.DefaultTTLSeconds)*time.Second,
		time.Duration(cfg.CleanupIntervalSeconds)*time.Second,
		cfg.MaxEntries,
		time.Now,
	)
}

func newCache(defaultTTL, cleanupInterval time.Duration, maxEntries int, now func() time.Time) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		now:        now,
		done:       make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.sweep(cleanupInterval)
	}
	return c
}

func (c *Cache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			c.mu.Lock()
			c.dropExpiredLocked(c.now())
			c.mu.Unlock()
		}
	}
}

func (c *Cache) dropExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.deadline) {
			delete(c.entries, k)
		}
	}
}

// Get returns a copy of the value under key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case !ok:
		return nil, cache.ErrNotFound
	case !c.now().Before(e.deadline):
		return nil, cache.ErrExpired
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value. A non-positive ttl selects the default.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.dropExpiredLocked(now)
		if len(c.entries) >= c.maxEntries {
			c.evictSoonestLocked()
		}
	}
	c.entries[key] = entry{
		value:    append([]byte(nil), value...),
		deadline: now.Add(ttl),
	}
	return nil
}

func (c *Cache) evictSoonestLocked() {
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for k, e := range c.entries {
		if !found || e.deadline.Before(soonest) {
			victim, soonest, found = k, e.deadline, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

// Delete removes key. Missing keys are not an error.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

var _ cache.Cache = (*Cache)(nil)
