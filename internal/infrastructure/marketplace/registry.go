package marketplace

import (
	"fmt"
	"sync"

	"github.com/ordersync/backend/internal/domain/channel"
)

// Registry implements the PlatformRegistry port. Adapters are registered once
// at startup; channels select their adapter by platform code at
// configuration time, never per call.
type Registry struct {
	mu       sync.RWMutex
	adapters map[channel.PlatformCode]channel.MarketplacePlatform
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[channel.PlatformCode]channel.MarketplacePlatform),
	}
}

// Register adds an adapter; registering the same code twice replaces it
func (r *Registry) Register(adapter channel.MarketplacePlatform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.PlatformCode()] = adapter
}

// GetPlatform returns the adapter for the specified code
func (r *Registry) GetPlatform(code channel.PlatformCode) (channel.MarketplacePlatform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", channel.ErrPlatformNotRegistered, code)
	}
	return adapter, nil
}

// ListPlatforms returns all registered adapters
func (r *Registry) ListPlatforms() []channel.MarketplacePlatform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]channel.MarketplacePlatform, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Ensure Registry implements PlatformRegistry
var _ channel.PlatformRegistry = (*Registry)(nil)
