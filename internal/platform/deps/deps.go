// Package deps holds the process-wide dependencies handed to services.
package deps

import (
	"errors"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/config"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/http/realip"
)

// Deps is built once in main and passed to every service constructor.
// Lifecycles (store, cache) are owned by main, not by the services.
type Deps struct {
	Config   *config.Config
	Waitlist *waitlist.Service

	// RealIP is the single source of truth for client identity.
	RealIP *realip.TrustedProxies
}

// Validate reports missing required dependencies.
func (d *Deps) Validate() error {
	if d == nil {
		return errors.New("deps: nil")
	}
	if d.Waitlist == nil {
		return errors.New("deps: waitlist service is required")
	}
	return nil
}
