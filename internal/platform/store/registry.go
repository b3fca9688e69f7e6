package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownDriver is returned by New for names no driver registered.
var ErrUnknownDriver = errors.New("unknown store driver")

// DriverConfig selects and parameterizes a driver.
type DriverConfig struct {
	// Driver is sqlite or memory.
	Driver string

	// DataDir holds the sqlite database file. Ignored by memory.
	DataDir string
}

// DriverFactory builds an uninitialized driver.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]DriverFactory)
)

// Register makes a driver available by name. Driver packages call it from
// init(); registering a name twice panics.
func Register(name string, factory DriverFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic("store: driver registered twice: " + name)
	}
	factories[name] = factory
}

// New builds the configured driver without initializing it.
// The caller must call Init before use and Close when done.
func New(cfg *DriverConfig) (Driver, error) {
	registryMu.RLock()
	factory, ok := factories[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, cfg.Driver, AvailableDrivers())
	}
	return factory(cfg)
}

// Open builds and initializes the configured driver. On Init failure the
// driver is closed before returning.
func Open(ctx context.Context, cfg *DriverConfig) (Driver, error) {
	drv, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := drv.Init(ctx); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("init %s store: %w", drv.Name(), err)
	}
	return drv, nil
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
