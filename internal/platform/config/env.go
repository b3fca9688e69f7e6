package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envConfig holds WAITLIST_* environment overrides. Pointer fields stay nil
// when the variable is unset so presence can be detected.
type envConfig struct {
	Mode             *string  `env:"WAITLIST_MODE"`
	ListenAddr       *string  `env:"WAITLIST_LISTEN_ADDR"`
	ExternalBasePath *string  `env:"WAITLIST_EXTERNAL_BASE_PATH"`
	TrustedProxies   []string `env:"WAITLIST_TRUSTED_PROXIES" envSeparator:","`

	TLSMode     *string `env:"WAITLIST_TLS_MODE"`
	TLSCertFile *string `env:"WAITLIST_TLS_CERT_FILE"`
	TLSKeyFile  *string `env:"WAITLIST_TLS_KEY_FILE"`

	StoreDriver  *string `env:"WAITLIST_STORE_DRIVER"`
	StoreDataDir *string `env:"WAITLIST_STORE_DATA_DIR"`

	CacheDriver   *string `env:"WAITLIST_CACHE_DRIVER"`
	RedisAddr     *string `env:"WAITLIST_REDIS_ADDR"`
	RedisPassword *string `env:"WAITLIST_REDIS_PASSWORD"`

	LogLevel  *string `env:"WAITLIST_LOG_LEVEL"`
	LogFormat *string `env:"WAITLIST_LOG_FORMAT"`
	LogFile   *string `env:"WAITLIST_LOG_FILE"`

	StatsCacheTTLSeconds *int    `env:"WAITLIST_STATS_CACHE_TTL_SECONDS"`
	TrendFillGaps        *bool   `env:"WAITLIST_TREND_FILL_GAPS"`
	Timezone             *string `env:"WAITLIST_TIMEZONE"`
}

// parseEnv reads overrides from environ, or from the process environment
// when environ is nil.
func parseEnv(environ map[string]string) (*envConfig, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &ec, nil
}

// overlayEnv applies environment overrides onto cfg.
func overlayEnv(cfg *Config, ec *envConfig) {
	setString(&cfg.ListenAddr, ec.ListenAddr)
	setString(&cfg.ExternalBasePath, ec.ExternalBasePath)
	if len(ec.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = ec.TrustedProxies
	}

	setString(&cfg.TLS.Mode, ec.TLSMode)
	setString(&cfg.TLS.CertFile, ec.TLSCertFile)
	setString(&cfg.TLS.KeyFile, ec.TLSKeyFile)

	setString(&cfg.Store.Driver, ec.StoreDriver)
	setString(&cfg.Store.DataDir, ec.StoreDataDir)

	setString(&cfg.Cache.Driver, ec.CacheDriver)
	if ec.RedisAddr != nil {
		redisDriverConfig(cfg)["addr"] = *ec.RedisAddr
	}
	if ec.RedisPassword != nil {
		redisDriverConfig(cfg)["password"] = *ec.RedisPassword
	}

	setString(&cfg.Logging.Level, ec.LogLevel)
	setString(&cfg.Logging.Format, ec.LogFormat)
	setString(&cfg.Logging.File, ec.LogFile)

	if ec.StatsCacheTTLSeconds != nil {
		cfg.Waitlist.StatsCacheTTLSeconds = *ec.StatsCacheTTLSeconds
	}
	if ec.TrendFillGaps != nil {
		cfg.Waitlist.TrendFillGaps = *ec.TrendFillGaps
	}
	setString(&cfg.Waitlist.Timezone, ec.Timezone)
}

func redisDriverConfig(cfg *Config) map[string]any {
	if cfg.Cache.Drivers == nil {
		cfg.Cache.Drivers = make(map[string]map[string]any)
	}
	if cfg.Cache.Drivers["redis"] == nil {
		cfg.Cache.Drivers["redis"] = make(map[string]any)
	}
	return cfg.Cache.Drivers["redis"]
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
