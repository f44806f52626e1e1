package agent

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/agentllm/agentllm/credstore"
	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
)

// ============================================================================
// AGENT REGISTRY / FACTORY
// ============================================================================

// Deps are the shared collaborators injected into every configurator.
type Deps struct {
	Creds   credstore.Store
	History history.Store
	Engine  engine.Engine
}

// Metadata describes a registered agent type.
type Metadata struct {
	Name        string
	Description string
	Mode        string

	// RequiresEnv lists environment variables that must be set before a
	// wrapper for this type can be constructed.
	RequiresEnv []string
}

// Definition binds agent metadata to a configurator constructor.
type Definition struct {
	Metadata

	// New builds a configurator with the given dependencies and model
	// parameters.
	New func(deps Deps, params Params) (*Configurator, error)
}

// Registry maps agent type identifiers to definitions and constructs
// wrappers on demand.
type Registry struct {
	deps Deps

	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry over the shared dependencies.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps: deps,
		defs: make(map[string]*Definition),
	}
}

// Register adds an agent definition.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return &RegistryError{Message: "agent definition requires a name"}
	}
	if def.New == nil {
		return &RegistryError{AgentType: def.Name, Message: "agent definition requires a constructor"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return &RegistryError{AgentType: def.Name, Message: "agent type already registered"}
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for an agent type.
func (r *Registry) Get(agentType string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[agentType]
	return def, ok
}

// List returns metadata for all registered agent types, sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Metadata, 0, len(r.defs))
	for _, def := range r.defs {
		list = append(list, def.Metadata)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// NewWrapper constructs a wrapper for (agentType, userID, sessionID) with
// the given model parameters. Fails fast, before any user interaction,
// when a declared environment prerequisite is missing.
func (r *Registry) NewWrapper(agentType, userID, sessionID string, params Params) (*Wrapper, error) {
	def, ok := r.Get(agentType)
	if !ok {
		return nil, &RegistryError{AgentType: agentType, Message: "unknown agent type"}
	}

	if missing := missingEnv(def.RequiresEnv); len(missing) > 0 {
		return nil, &RegistryError{
			AgentType: agentType,
			Message:   fmt.Sprintf("missing required environment: %s", strings.Join(missing, ", ")),
		}
	}

	configurator, err := def.New(r.deps, params)
	if err != nil {
		return nil, &RegistryError{AgentType: agentType, Message: "failed to construct configurator", Err: err}
	}

	return NewWrapper(configurator, userID, sessionID), nil
}

func missingEnv(names []string) []string {
	var missing []string
	for _, name := range names {
		if v, ok := os.LookupEnv(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
