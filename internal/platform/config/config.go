// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address to listen on.
	// Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	// ExternalBasePath is the optional path prefix all services mount under.
	// Example: "/waitlist-svc" or empty string
	ExternalBasePath string `toml:"external_base_path"`

	// Server holds server-level settings.
	Server ServerConfig `toml:"server"`

	TLS     TLSConfig     `toml:"tls"`
	Store   StoreConfig   `toml:"store"`
	Cache   CacheConfig   `toml:"cache"`
	Logging LoggingConfig `toml:"logging"`

	// Waitlist holds domain settings for registration and ranking.
	Waitlist WaitlistConfig `toml:"waitlist"`

	// HTTP holds per-service HTTP configuration.
	HTTP HTTPConfig `toml:"http"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies lists CIDRs whose forwarding headers
	// are honored when resolving the client address.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// TLSConfig holds TLS settings.
type TLSConfig struct {
	// Mode is "off" (plain HTTP, usually behind a proxy) or "static".
	Mode     string `toml:"mode"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `toml:"driver"`

	// DataDir holds the SQLite database file.
	DataDir string `toml:"data_dir"`
}

// CacheConfig selects the stats cache driver.
// Driver-specific settings live under [cache.drivers.<name>].
type CacheConfig struct {
	// Driver is "", "memory" or "redis". Empty disables the stats cache.
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "json" or "text".
	Format string `toml:"format"`

	// File optionally tees logs into a rotated file.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// WaitlistConfig holds domain settings.
type WaitlistConfig struct {
	// StatsCacheTTLSeconds is how long aggregate stats are cached.
	// Zero disables caching even when a cache driver is configured.
	StatsCacheTTLSeconds int `toml:"stats_cache_ttl_seconds"`

	// TrendFillGaps emits zero-count days in the signup trend.
	TrendFillGaps bool `toml:"trend_fill_gaps"`

	// Timezone is the IANA zone used for "today" and trend day bucketing.
	Timezone string `toml:"timezone"`

	DefaultPageLimit int `toml:"default_page_limit"`
	MaxPageLimit     int `toml:"max_page_limit"`
}

// HTTPConfig holds per-service HTTP configuration.
// Services are configured under [http.services.<svcname>].
type HTTPConfig struct {
	// Services maps service names to their raw config maps.
	// Each service decodes its own config via cfg.Decode() with Setter interface.
	Services map[string]map[string]any `toml:"services"`
}

// StatsCacheTTL returns the stats cache TTL as a duration.
func (c *Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.Waitlist.StatsCacheTTLSeconds) * time.Second
}

// Location resolves the configured time zone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Waitlist.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Waitlist.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid waitlist.timezone %q: %w", c.Waitlist.Timezone, err)
	}
	return loc, nil
}

// BuildServiceConfig returns the raw service config map for a given service name.
// Returns nil if the service is not configured in [http.services.<name>].
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	result := make(map[string]any, len(svcCfg))
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// Redacted returns a string representation of the config with secrets redacted.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	fmt.Fprintf(&sb, "  Mode: %q,\n", c.Mode)
	fmt.Fprintf(&sb, "  ListenAddr: %q,\n", c.ListenAddr)
	fmt.Fprintf(&sb, "  ExternalBasePath: %q,\n", c.ExternalBasePath)
	fmt.Fprintf(&sb, "  Server: {TrustedProxies: %v},\n", c.Server.TrustedProxies)
	fmt.Fprintf(&sb, "  TLS: {Mode: %q, CertFile: %q, KeyFile: %q},\n", c.TLS.Mode, c.TLS.CertFile, c.TLS.KeyFile)
	fmt.Fprintf(&sb, "  Store: {Driver: %q, DataDir: %q},\n", c.Store.Driver, c.Store.DataDir)
	fmt.Fprintf(&sb, "  Cache: {Driver: %q", c.Cache.Driver)
	for _, name := range sortedKeys(c.Cache.Drivers) {
		fmt.Fprintf(&sb, ", %s: {", name)
		drv := c.Cache.Drivers[name]
		for i, k := range sortedKeys(drv) {
			if i > 0 {
				sb.WriteString(", ")
			}
			if isSecretKey(k) {
				fmt.Fprintf(&sb, "%s: [REDACTED]", k)
				continue
			}
			fmt.Fprintf(&sb, "%s: %v", k, drv[k])
		}
		sb.WriteString("}")
	}
	sb.WriteString("},\n")
	fmt.Fprintf(&sb, "  Logging: {Level: %q, Format: %q, File: %q},\n", c.Logging.Level, c.Logging.Format, c.Logging.File)
	fmt.Fprintf(&sb, "  Waitlist: {StatsCacheTTLSeconds: %d, TrendFillGaps: %v, Timezone: %q, DefaultPageLimit: %d, MaxPageLimit: %d},\n",
		c.Waitlist.StatsCacheTTLSeconds, c.Waitlist.TrendFillGaps, c.Waitlist.Timezone,
		c.Waitlist.DefaultPageLimit, c.Waitlist.MaxPageLimit)
	fmt.Fprintf(&sb, "  HTTP: {Services: %v},\n", sortedKeys(c.HTTP.Services))
	sb.WriteString("}")
	return sb.String()
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
