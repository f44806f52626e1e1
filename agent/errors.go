package agent

import "fmt"

// ============================================================================
// AGENT ERRORS
// ============================================================================

// EngineError reports a failure in the underlying execution engine. It is
// surfaced to the caller as a generic failure; retry policy belongs to the
// engine, not this layer.
type EngineError struct {
	Agent   string
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine failure in agent %s: %s: %v", e.Agent, e.Message, e.Err)
	}
	return fmt.Sprintf("engine failure in agent %s: %s", e.Agent, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// RegistryError reports an agent registry failure.
type RegistryError struct {
	AgentType string
	Message   string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent registry [%s]: %s: %v", e.AgentType, e.Message, e.Err)
	}
	return fmt.Sprintf("agent registry [%s]: %s", e.AgentType, e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}
