package agents

import (
	"github.com/agentllm/agentllm/agent"
)

// ============================================================================
// DEMO AGENT
// ============================================================================

var demoInstructions = []string{
	"You are a friendly general-purpose assistant.",
	"Answer clearly and keep responses short unless asked for detail.",
	"Use markdown formatting for structured output.",
}

// Demo returns a minimal agent definition with no required toolkits.
// It is ready immediately and useful for smoke-testing the gateway.
func Demo() *agent.Definition {
	return &agent.Definition{
		Metadata: agent.Metadata{
			Name:        "demo",
			Description: "General-purpose assistant without external tools",
			Mode:        "agent",
		},
		New: func(deps agent.Deps, params agent.Params) (*agent.Configurator, error) {
			return agent.NewConfigurator(
				"demo",
				"General-purpose assistant without external tools",
				demoInstructions,
				nil,
				deps.Engine, deps.History, params), nil
		},
	}
}

// All lists every built-in agent definition.
func All() []*agent.Definition {
	return []*agent.Definition{
		ReleaseManager(),
		Demo(),
	}
}

// Register adds the named definitions to the registry. An empty names
// list registers every built-in agent.
func Register(registry *agent.Registry, names []string) error {
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		enabled[name] = true
	}

	for _, def := range All() {
		if len(names) > 0 && !enabled[def.Name] {
			continue
		}
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
