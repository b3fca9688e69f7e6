// Package store provides the persistence driver abstraction for waitlist entries.
package store

import (
	"context"
	"errors"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
)

// ErrClosed is returned by drivers used after Close.
var ErrClosed = errors.New("store closed")

// Driver is a persistence backend for waitlist entries.
// Implementations must be safe for concurrent use.
type Driver interface {
	waitlist.Repository

	// Init prepares the backend (open files, migrate schema).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (sqlite, memory).
	Name() string
}
