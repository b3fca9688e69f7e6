// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/waitlist-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/config"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/deps"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/logutil"
)

var (
	ErrMissingDeps     = errors.New("server: deps not initialized")
	ErrInvalidTLSMode  = errors.New("server: invalid tls mode")
	ErrDuplicatePrefix = errors.New("server: duplicate service prefix")
)

// Server wraps the HTTP server and its mounted services.
type Server struct {
	cfg        *config.Config
	deps       *deps.Deps
	httpServer *http.Server
	logger     *slog.Logger

	// mountedServices is kept in mount order; closed in reverse on shutdown.
	mountedServices []service.Service
}

// New creates a new Server. Services are mounted at {external_base_path}/{prefix};
// nil entries are skipped.
func New(cfg *config.Config, logger *slog.Logger, d *deps.Deps, services []service.Service) (*Server, error) {
	logger = logutil.NoopIfNil(logger)

	if err := d.Validate(); err != nil {
		return nil, errors.Join(ErrMissingDeps, err)
	}

	s := &Server{
		cfg:    cfg,
		deps:   d,
		logger: logger,
	}

	router, err := s.setupRoutes(services)
	if err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler. Useful for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln. It blocks until the server is shut down and returns
// http.ErrServerClosed after a graceful Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting server",
		"addr", ln.Addr().String(),
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "", "off":
		return s.httpServer.Serve(ln)

	case "static":
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.httpServer.ServeTLS(ln, "", "")

	default:
		_ = ln.Close()
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// Shutdown gracefully shuts down the server and all mounted services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	errs := []error{s.httpServer.Shutdown(ctx)}

	for i := len(s.mountedServices) - 1; i >= 0; i-- {
		svc := s.mountedServices[i]
		if err := svc.Close(); err != nil {
			s.logger.Warn("service close error", "service", svc.Prefix(), "error", err)
			errs = append(errs, fmt.Errorf("close service %q: %w", svc.Prefix(), err))
			continue
		}
		s.logger.Debug("service closed", "service", svc.Prefix())
	}

	return errors.Join(errs...)
}
