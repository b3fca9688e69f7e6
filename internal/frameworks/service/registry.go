package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/waitlist-go/internal/platform/deps"
)

// CoreServices lists service names that are always constructed, whether or
// not [http.services.<name>] appears in the config file.
var CoreServices = []string{"api"}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]NewService)
)

// Register registers a new HTTP service constructor by name.
// This is typically called from init() in service packages.
// Duplicate registration returns an error (fail-fast, no panic).
func Register(name string, newFunc NewService) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	registry[name] = newFunc
	return nil
}

// MustRegister is like Register but panics on error.
// Use this in init() where returning an error is not possible.
func MustRegister(name string, newFunc NewService) {
	if err := Register(name, newFunc); err != nil {
		panic(err)
	}
}

// Get returns the constructor for a registered service.
// Returns nil if the service is not registered.
func Get(name string) NewService {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// RegisteredServices returns the sorted names of all registered services.
func RegisteredServices() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildAll constructs every core service plus any service that has a
// [http.services.<name>] table. Services are returned in name order.
// On failure, services built so far are closed.
func BuildAll(confs map[string]map[string]any, d *deps.Deps, log *slog.Logger) ([]Service, error) {
	wanted := make(map[string]bool, len(CoreServices)+len(confs))
	for _, name := range CoreServices {
		wanted[name] = true
	}
	for name := range confs {
		wanted[name] = true
	}

	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	built := make([]Service, 0, len(names))
	for _, name := range names {
		newFunc := Get(name)
		if newFunc == nil {
			closeAll(built)
			return nil, fmt.Errorf("service %q is not registered", name)
		}
		svc, err := newFunc(confs[name], d, log.With("service", name))
		if err != nil {
			closeAll(built)
			return nil, fmt.Errorf("failed to create service %q: %w", name, err)
		}
		built = append(built, svc)
	}
	return built, nil
}

func closeAll(svcs []Service) {
	for _, s := range svcs {
		_ = s.Close()
	}
}

// resetRegistry is for testing only. Clears the registry.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]NewService)
}
