// Package toolkit defines the per-service capability units an agent can
// carry. A Config knows how to detect, extract, and prompt for the
// configuration a user must supply before its Toolkit can be materialized.
package toolkit

import "context"

// Toolkit is a materialized capability attached to a built agent.
type Toolkit interface {
	Name() string
	Description() string

	// Call executes the capability with the given arguments.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Config is one configuration unit. Implementations are stateless with
// respect to users: all per-user state lives in the credential store or
// in explicit per-user caches.
type Config interface {
	// Name identifies the service this config manages (credential key).
	Name() string

	// IsRequired reports whether the toolkit blocks agent use until
	// configured. Static per toolkit type.
	IsRequired() bool

	// IsConfigured reports whether the user has everything this toolkit
	// needs. Derived configs short-circuit to false when their
	// dependency is unconfigured.
	IsConfigured(ctx context.Context, userID string) bool

	// CheckAuthorizationRequest inspects a message for an attempt to use
	// or authorize this toolkit and returns a prompt when setup is still
	// needed, or "" to stay silent.
	CheckAuthorizationRequest(ctx context.Context, message, userID string) string

	// ExtractAndStoreConfig parses configuration out of a free-text
	// message. Returns ("", nil) when the message is not configuration
	// shaped, a confirmation string on success, or a RecoverableConfigError
	// when the message looked like configuration but failed validation.
	// Never panics on malformed input.
	ExtractAndStoreConfig(ctx context.Context, message, userID string) (string, error)

	// GetConfigPrompt returns the human-readable instructions for what
	// the user must provide next, or "" when nothing is needed.
	GetConfigPrompt(ctx context.Context, userID string) string

	// GetToolkit materializes the capability object. Calling it while
	// unconfigured is a state-machine bug and returns an
	// InvariantViolationError.
	GetToolkit(ctx context.Context, userID string) (Toolkit, error)

	// GetAgentInstructions returns toolkit-specific instruction lines
	// for the agent, empty when unconfigured.
	GetAgentInstructions(ctx context.Context, userID string) ([]string, error)
}
