package physical

import (
	"context"
	"fmt"
	"sync"
)

// Factory creates a new store from a configuration map.
type Factory func(ctx context.Context, config map[string]string) (Store, error)

// DefaultsFunc returns the default configuration for a backend.
type DefaultsFunc func() map[string]string

type registration struct {
	factory  Factory
	defaults DefaultsFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register registers a store factory under the given name. It panics if
// the name is already registered.
func Register(name string, factory Factory, defaults DefaultsFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("airdrop store %q already registered", name))
	}
	registry[name] = registration{factory: factory, defaults: defaults}
}

// GetDefaults returns the default configuration for the named backend, or
// nil if the backend is not registered.
func GetDefaults(name string) map[string]string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, exists := registry[name]
	if !exists || reg.defaults == nil {
		return nil
	}
	return reg.defaults()
}

// ListBackends returns the names of all registered backends.
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// New creates a store by backend name. The provided config is merged over
// the backend's defaults.
func New(ctx context.Context, name string, config map[string]string) (Store, error) {
	registryMu.RLock()
	reg, exists := registry[name]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown airdrop store backend: %q", name)
	}

	merged := make(map[string]string)
	if reg.defaults != nil {
		for k, v := range reg.defaults() {
			merged[k] = v
		}
	}
	for k, v := range config {
		merged[k] = v
	}

	return reg.factory(ctx, merged)
}
