package wire

import (
	"sync"

	"ai-realtime-bridge-service/internal/realtime/provider"
)

// Switcher rents wire clients keyed by provider identity. Each session gets
// its own Client; per-provider tuning overrides the default config.
type Switcher struct {
	mu        sync.RWMutex
	defaults  Config
	overrides map[provider.ID]Config
}

// NewSwitcher creates a Switcher using defaults for every provider.
func NewSwitcher(defaults Config) *Switcher {
	return &Switcher{
		defaults:  defaults,
		overrides: make(map[provider.ID]Config),
	}
}

// Configure sets the client config used for one provider.
func (s *Switcher) Configure(id provider.ID, cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[id] = cfg
}

// Rent returns a fresh, unconnected Client for the provider.
func (s *Switcher) Rent(id provider.ID) *Client {
	s.mu.RLock()
	cfg, ok := s.overrides[id]
	if !ok {
		cfg = s.defaults
	}
	s.mu.RUnlock()
	return NewClient(cfg)
}
