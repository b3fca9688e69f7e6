package service

import (
	"log/slog"
	"net/http"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/deps"
)

// Service represents an HTTP service that can be registered and mounted.
type Service interface {
	Handler() http.Handler
	// Prefix is the mount path below the external base path, without slashes.
	Prefix() string
	Close() error
}

// NewService is the constructor function type for services.
// conf is the service's [http.services.<name>] table; d carries the
// process-wide dependencies built in main.
type NewService func(conf map[string]any, d *deps.Deps, log *slog.Logger) (Service, error)
