package engine

import (
	"fmt"
	"sync"

	"github.com/agentllm/agentllm/config"
)

// Factory builds an Engine from config.
type Factory func(cfg *config.EngineConfig) (Engine, error)

// Registry maps engine type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in engine types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("openai", func(cfg *config.EngineConfig) (Engine, error) {
		return NewOpenAIEngine(cfg)
	})
	return r
}

// Register adds a factory for the given engine type, replacing any
// existing registration.
func (r *Registry) Register(engineType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[engineType] = factory
}

// Create builds an engine of the configured type.
func (r *Registry) Create(cfg *config.EngineConfig) (Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Type)
	}
	return factory(cfg)
}

// Types returns the registered engine type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for name := range r.factories {
		types = append(types, name)
	}
	return types
}
