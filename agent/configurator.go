package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
	"github.com/agentllm/agentllm/toolkit"
)

// ============================================================================
// AGENT CONFIGURATOR
// Owns the configuration state machine and agent-build logic for one
// agent type.
// ============================================================================

// State is the configurator's per-user configuration state.
type State string

const (
	// StateGatheringConfig means at least one required toolkit is
	// unconfigured and messages are intercepted for configuration.
	StateGatheringConfig State = "gathering_config"

	// StateReady means every required toolkit is configured.
	StateReady State = "ready"
)

// CredentialListener is notified after a credential is stored for a
// service, so dependent caches can be dropped.
type CredentialListener func(service, userID string)

// ConfigResult is a message handled entirely by the configuration layer.
// The text goes back to the user as an ordinary assistant response and the
// message is never forwarded to the engine.
type ConfigResult struct {
	Text string

	// CredentialStored reports that this message carried configuration
	// that was extracted and persisted just now.
	CredentialStored bool

	// Service names the toolkit whose credential was stored.
	Service string
}

// Params are the model parameters an agent is built with. A nil
// Temperature means unset; the engine applies its configured default.
type Params struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Configurator drives the ordered toolkit configurations for one agent
// type and builds the execution-ready agent once all required toolkits
// are satisfied.
type Configurator struct {
	name             string
	description      string
	baseInstructions []string
	configs          []toolkit.Config
	listeners        []CredentialListener
	engine           engine.Engine
	history          history.Store
	params           Params
	logger           *slog.Logger
}

// NewConfigurator creates a configurator. Toolkit order matters: a config
// that derives from another must come after its dependency, and prompting
// follows registration order.
func NewConfigurator(name, description string, baseInstructions []string, configs []toolkit.Config, eng engine.Engine, hist history.Store, params Params) *Configurator {
	return &Configurator{
		name:             name,
		description:      description,
		baseInstructions: baseInstructions,
		configs:          configs,
		engine:           eng,
		history:          hist,
		params:           params,
		logger:           slog.Default().With("agent", name),
	}
}

// Name returns the agent type name.
func (c *Configurator) Name() string { return c.name }

// Description returns the agent description.
func (c *Configurator) Description() string { return c.description }

// Params returns the model parameters.
func (c *Configurator) Params() Params { return c.params }

// OnCredentialStored registers a listener for credential writes.
func (c *Configurator) OnCredentialStored(fn CredentialListener) {
	c.listeners = append(c.listeners, fn)
}

// StateFor reports the configuration state for a user.
func (c *Configurator) StateFor(ctx context.Context, userID string) State {
	for _, cfg := range c.configs {
		if cfg.IsRequired() && !cfg.IsConfigured(ctx, userID) {
			return StateGatheringConfig
		}
	}
	return StateReady
}

// HandleMessage runs the three-phase configuration check for an inbound
// message. A nil result means the message should proceed to the engine.
//
// Phase order matters: extraction runs first so a message carrying
// credentials is stored before the missing-config check re-evaluates.
func (c *Configurator) HandleMessage(ctx context.Context, message, userID string) (*ConfigResult, error) {
	// Phase 1: try to extract configuration from the message.
	for _, cfg := range c.configs {
		confirmation, err := cfg.ExtractAndStoreConfig(ctx, message, userID)
		if err != nil {
			var recoverable *toolkit.RecoverableConfigError
			if errors.As(err, &recoverable) {
				c.logger.Warn("configuration rejected", "service", cfg.Name(), "user_id", userID, "reason", recoverable.Message)
				return &ConfigResult{
					Text: fmt.Sprintf("Configuration for %s was rejected: %s\n\nPlease check it and try again.",
						cfg.Name(), recoverable.Message),
				}, nil
			}
			return nil, err
		}
		if confirmation != "" {
			c.logger.Info("credential stored", "service", cfg.Name(), "user_id", userID)
			for _, fn := range c.listeners {
				fn(cfg.Name(), userID)
			}

			text := confirmation
			if c.StateFor(ctx, userID) == StateReady {
				text += "\n\nAll required setup is complete. How can I help?"
			}
			return &ConfigResult{Text: text, CredentialStored: true, Service: cfg.Name()}, nil
		}
	}

	// Phase 2: prompt for the first unconfigured required toolkit.
	for _, cfg := range c.configs {
		if cfg.IsRequired() && !cfg.IsConfigured(ctx, userID) {
			if prompt := cfg.GetConfigPrompt(ctx, userID); prompt != "" {
				c.logger.Info("configuration needed", "service", cfg.Name(), "user_id", userID)
				return &ConfigResult{Text: prompt}, nil
			}
		}
	}

	// Phase 3: optional toolkits may prompt when the message invokes
	// their domain; they never block unrelated messages.
	for _, cfg := range c.configs {
		if !cfg.IsRequired() {
			if prompt := cfg.CheckAuthorizationRequest(ctx, message, userID); prompt != "" {
				return &ConfigResult{Text: prompt}, nil
			}
		}
	}

	return nil, nil
}

// BuildAgent assembles the execution-ready agent for a user. Only
// callable when all required toolkits are configured; assembly is
// deterministic, following toolkit registration order.
func (c *Configurator) BuildAgent(ctx context.Context, userID string) (*BuiltAgent, error) {
	for _, cfg := range c.configs {
		if cfg.IsRequired() && !cfg.IsConfigured(ctx, userID) {
			return nil, toolkit.NewInvariantViolationError(cfg.Name(),
				"agent build requested while a required toolkit is unconfigured")
		}
	}

	instructions := make([]string, 0, len(c.baseInstructions))
	instructions = append(instructions, c.baseInstructions...)

	var tools []toolkit.Toolkit
	for _, cfg := range c.configs {
		if !cfg.IsConfigured(ctx, userID) {
			continue
		}

		extra, err := cfg.GetAgentInstructions(ctx, userID)
		if err != nil {
			// FatalConfigError surfaces unchanged; the agent is
			// unusable until an operator intervenes.
			return nil, err
		}
		instructions = append(instructions, extra...)

		tk, err := cfg.GetToolkit(ctx, userID)
		if err != nil {
			return nil, err
		}
		if tk != nil {
			tools = append(tools, tk)
		}
	}

	c.logger.Info("agent built", "user_id", userID, "tools", len(tools), "instruction_lines", len(instructions))

	return &BuiltAgent{
		name:         c.name,
		userID:       userID,
		instructions: instructions,
		tools:        tools,
		params:       c.params,
		engine:       c.engine,
		history:      c.history,
	}, nil
}
