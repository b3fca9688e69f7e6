package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/api"
	"github.com/MahdiBaghbani/waitlist-go/internal/frameworks/service"
	httpmw "github.com/MahdiBaghbani/waitlist-go/internal/platform/http/middleware"
)

// setupRoutes creates the chi router with every service mounted.
func (s *Server) setupRoutes(services []service.Service) (chi.Router, error) {
	r := chi.NewRouter()

	// Order is invariant: RequestID -> request-scoped logger -> access log -> recoverer
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger, s.deps.RealIP))
	r.Use(httpmw.AccessLogMiddleware(s.logger, s.deps.RealIP))
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusMethodNotAllowed, api.ReasonMethodNotAllowed, "method not allowed")
	})

	var err error
	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			err = s.mountServices(r, services)
		})
	} else {
		err = s.mountServices(r, services)
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

// mountServices mounts each service under /{prefix} and tracks it for shutdown.
func (s *Server) mountServices(r chi.Router, services []service.Service) error {
	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		if svc == nil {
			continue
		}
		prefix := svc.Prefix()
		if seen[prefix] {
			return fmt.Errorf("%w: %q", ErrDuplicatePrefix, prefix)
		}
		seen[prefix] = true

		if prefix == "" {
			r.Mount("/", svc.Handler())
		} else {
			r.Mount("/"+prefix, svc.Handler())
		}
		s.mountedServices = append(s.mountedServices, svc)
		s.logger.Debug("service mounted", "prefix", prefix)
	}
	return nil
}
