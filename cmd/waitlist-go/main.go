// Package main is the entrypoint for the waitlist-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/cache"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/config"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/deps"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store"

	_ "github.com/MahdiBaghbani/waitlist-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/waitlist-go/internal/platform/store/loader"
	_ "github.com/MahdiBaghbani/waitlist-go/internal/services/loader"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "Path prefix for all services (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off or static (overrides config)")
	storeDriver := flag.String("store-driver", "", "Persistence driver: sqlite or memory (overrides config)")
	dataDir := flag.String("data-dir", "", "SQLite data directory (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Stats cache driver: memory or redis (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	loggingFormat := flag.String("logging-format", "", "Log format: json or text (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			ExternalBasePath: externalBasePath,
			TLSMode:          tlsMode,
			StoreDriver:      storeDriver,
			StoreDataDir:     dataDir,
			CacheDriver:      cacheDriver,
			LoggingLevel:     loggingLevel,
			LoggingFormat:    loggingFormat,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logutil.New(logutil.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		bootstrapLogger.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
	_ = logCloser.Close()
}

// run owns every resource lifecycle: opened here, closed before return.
func run(cfg *config.Config, logger *slog.Logger) (err error) {
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, err := store.Open(ctx, &store.DriverConfig{Driver: cfg.Store.Driver, DataDir: cfg.Store.DataDir})
	if err != nil {
		return err
	}
	defer closeWith(logger, "store", drv, &err)
	logger.Info("store initialized", "driver", drv.Name())

	var statsCache cache.Cache
	if cfg.Cache.Driver != "" {
		statsCache, err = cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers)
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		defer closeWith(logger, "cache", statsCache, &err)
		logger.Info("stats cache enabled", "driver", cfg.Cache.Driver, "ttl", cfg.StatsCacheTTL())
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	d := &deps.Deps{
		Config: cfg,
		Waitlist: waitlist.NewService(drv, waitlist.Options{
			Cache:            statsCache,
			StatsTTL:         cfg.StatsCacheTTL(),
			Location:         loc,
			FillTrendGaps:    cfg.Waitlist.TrendFillGaps,
			DefaultPageLimit: cfg.Waitlist.DefaultPageLimit,
			MaxPageLimit:     cfg.Waitlist.MaxPageLimit,
			Logger:           logger.With("component", "waitlist"),
		}),
		RealIP: realip.NewTrustedProxies(cfg.Server.TrustedProxies),
	}

	services, err := service.BuildAll(cfg.HTTP.Services, d, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger, d, services)
	if err != nil {
		for _, svc := range services {
			_ = svc.Close()
		}
		return fmt.Errorf("failed to create server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	logger.Info("server started, press Ctrl+C to stop")

	select {
	case err := <-serveErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}

	logger.Info("server stopped")
	return nil
}

// closeWith closes c and joins any failure into *errp.
func closeWith(logger *slog.Logger, what string, c io.Closer, errp *error) {
	if cerr := c.Close(); cerr != nil {
		logger.Warn("close failed", "resource", what, "error", cerr)
		*errp = errors.Join(*errp, fmt.Errorf("close %s: %w", what, cerr))
		return
	}
	logger.Debug("closed", "resource", what)
}
