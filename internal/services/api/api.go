// Package api provides the /api/* endpoints.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/waitlist-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/deps"
)

func init() {
	service.MustRegister("api", New)
}

// Config holds api service configuration from [http.services.api].
type Config struct {
	// Timeout bounds each request's handler context.
	Timeout time.Duration `mapstructure:"timeout"`

	// PublicOnly mounts only registration and health. Listing, stats and
	// status updates are left to a separately protected deployment.
	PublicOnly bool `mapstructure:"public_only"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Service is the API service.
type Service struct {
	router chi.Router
	conf   *Config
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, d *deps.Deps, log *slog.Logger) (service.Service, error) {
	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	if err := d.Validate(); err != nil {
		return nil, errors.Join(errors.New("api: shared deps not initialized"), err)
	}

	h := waitlist.NewHandler(d.Waitlist)

	r := chi.NewRouter()
	r.Use(chimw.Timeout(c.Timeout))

	r.Get("/health", h.Health)
	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", h.Register)
		if c.PublicOnly {
			return
		}
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Patch("/{id}", h.Update)
	})

	return &Service{
		router: r,
		conf:   &c,
		log:    log,
	}, nil
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Prefix returns the service's URL prefix.
func (s *Service) Prefix() string {
	return "api"
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	return nil
}
