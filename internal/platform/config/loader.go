package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides env and config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override all other sources.
	FlagOverrides FlagOverrides

	// Environ replaces the process environment when non-nil.
	Environ map[string]string

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr       *string
	ExternalBasePath *string
	TLSMode          *string
	StoreDriver      *string
	StoreDataDir     *string
	CacheDriver      *string
	LoggingLevel     *string
	LoggingFormat    *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Mode             string `toml:"mode"`
	ListenAddr       string `toml:"listen_addr"`
	ExternalBasePath string `toml:"external_base_path"`

	Server   *ServerConfig       `toml:"server"`
	TLS      *TLSConfig          `toml:"tls"`
	Store    *StoreConfig        `toml:"store"`
	Cache    *CacheConfig        `toml:"cache"`
	Logging  *loggingFileConfig  `toml:"logging"`
	Waitlist *waitlistFileConfig `toml:"waitlist"`
	HTTP     *HTTPConfig         `toml:"http"`
}

type loggingFileConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  *int   `toml:"max_size_mb"`
	MaxBackups *int   `toml:"max_backups"`
	MaxAgeDays *int   `toml:"max_age_days"`
	Compress   *bool  `toml:"compress"`
}

type waitlistFileConfig struct {
	StatsCacheTTLSeconds *int   `toml:"stats_cache_ttl_seconds"`
	TrendFillGaps        *bool  `toml:"trend_fill_gaps"`
	Timezone             string `toml:"timezone"`
	DefaultPageLimit     *int   `toml:"default_page_limit"`
	MaxPageLimit         *int   `toml:"max_page_limit"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > WAITLIST_MODE > mode in config file > strict
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay WAITLIST_* environment variables
//  5. Overlay CLI flags
//  6. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	ec, err := parseEnv(opts.Environ)
	if err != nil {
		return nil, err
	}

	modeStr := "strict"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if ec.Mode != nil && *ec.Mode != "" {
		modeStr = *ec.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}
	overlayEnv(cfg, ec)
	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production defaults: SQLite storage, JSON logs.
func StrictConfig() *Config {
	return &Config{
		Mode:       string(ModeStrict),
		ListenAddr: ":8080",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{
			Mode: "off",
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".waitlist/data",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Waitlist: WaitlistConfig{
			StatsCacheTTLSeconds: 30,
			TrendFillGaps:        true,
			Timezone:             "UTC",
			DefaultPageLimit:     50,
			MaxPageLimit:         100,
		},
	}
}

// DevConfig returns development mode defaults: in-memory storage and
// cache, human-readable debug logs.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store = StoreConfig{Driver: "memory"}
	cfg.Cache.Driver = "memory"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}

	if fc.Server != nil && len(fc.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			if cfg.Cache.Drivers == nil {
				cfg.Cache.Drivers = make(map[string]map[string]any)
			}
			for name, drvCfg := range fc.Cache.Drivers {
				cfg.Cache.Drivers[name] = drvCfg
			}
		}
	}

	if l := fc.Logging; l != nil {
		if l.Level != "" {
			cfg.Logging.Level = l.Level
		}
		if l.Format != "" {
			cfg.Logging.Format = l.Format
		}
		if l.File != "" {
			cfg.Logging.File = l.File
		}
		if l.MaxSizeMB != nil {
			cfg.Logging.MaxSizeMB = *l.MaxSizeMB
		}
		if l.MaxBackups != nil {
			cfg.Logging.MaxBackups = *l.MaxBackups
		}
		if l.MaxAgeDays != nil {
			cfg.Logging.MaxAgeDays = *l.MaxAgeDays
		}
		if l.Compress != nil {
			cfg.Logging.Compress = *l.Compress
		}
	}

	if w := fc.Waitlist; w != nil {
		if w.StatsCacheTTLSeconds != nil {
			cfg.Waitlist.StatsCacheTTLSeconds = *w.StatsCacheTTLSeconds
		}
		if w.TrendFillGaps != nil {
			cfg.Waitlist.TrendFillGaps = *w.TrendFillGaps
		}
		if w.Timezone != "" {
			cfg.Waitlist.Timezone = w.Timezone
		}
		if w.DefaultPageLimit != nil {
			cfg.Waitlist.DefaultPageLimit = *w.DefaultPageLimit
		}
		if w.MaxPageLimit != nil {
			cfg.Waitlist.MaxPageLimit = *w.MaxPageLimit
		}
	}

	if fc.HTTP != nil && len(fc.HTTP.Services) > 0 {
		if cfg.HTTP.Services == nil {
			cfg.HTTP.Services = make(map[string]map[string]any)
		}
		for name, svcCfg := range fc.HTTP.Services {
			cfg.HTTP.Services[name] = svcCfg
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	setString(&cfg.ListenAddr, f.ListenAddr)
	setString(&cfg.ExternalBasePath, f.ExternalBasePath)
	setString(&cfg.TLS.Mode, f.TLSMode)
	setString(&cfg.Store.Driver, f.StoreDriver)
	setString(&cfg.Store.DataDir, f.StoreDataDir)
	setString(&cfg.Cache.Driver, f.CacheDriver)
	setString(&cfg.Logging.Level, f.LoggingLevel)
	setString(&cfg.Logging.Format, f.LoggingFormat)
}

// validate checks enum-like fields and cross-field constraints.
func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off":
	case "static":
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("tls.mode static requires tls.cert_file and tls.key_file")
		}
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, memory", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be empty or one of memory, redis", cfg.Cache.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q: must be one of json, text", cfg.Logging.Format)
	}

	if err := validateBasePath(cfg.ExternalBasePath); err != nil {
		return err
	}

	if _, err := cfg.Location(); err != nil {
		return err
	}

	w := cfg.Waitlist
	if w.StatsCacheTTLSeconds < 0 {
		return fmt.Errorf("invalid waitlist.stats_cache_ttl_seconds %d: must not be negative", w.StatsCacheTTLSeconds)
	}
	if w.DefaultPageLimit < 1 {
		return fmt.Errorf("invalid waitlist.default_page_limit %d: must be at least 1", w.DefaultPageLimit)
	}
	if w.MaxPageLimit < w.DefaultPageLimit {
		return fmt.Errorf("invalid waitlist.max_page_limit %d: must be at least default_page_limit (%d)", w.MaxPageLimit, w.DefaultPageLimit)
	}

	return nil
}

// validateBasePath requires an absolute path without a trailing slash.
func validateBasePath(p string) error {
	if p == "" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("invalid external_base_path %q: must start with /", p)
	}
	if strings.HasSuffix(p, "/") {
		return fmt.Errorf("invalid external_base_path %q: must not end with /", p)
	}
	if strings.Contains(p, "..") || strings.Contains(p, "://") {
		return fmt.Errorf("invalid external_base_path %q: must be a plain path", p)
	}
	return nil
}
