package toolkit

import "fmt"

// ============================================================================
// CONFIGURATION ERROR TAXONOMY
// ============================================================================

// RecoverableConfigError reports user-supplied configuration that failed
// validation. The caller re-prompts; it is never a hard failure.
type RecoverableConfigError struct {
	Service string
	Message string
}

func (e *RecoverableConfigError) Error() string {
	return fmt.Sprintf("configuration for %s rejected: %s", e.Service, e.Message)
}

// NewRecoverableConfigError creates a validation failure for a service.
func NewRecoverableConfigError(service, message string) *RecoverableConfigError {
	return &RecoverableConfigError{Service: service, Message: message}
}

// FatalConfigError reports a dependency fetch that failed after the user
// already configured everything. Retrying the same message will not help;
// operator intervention or a later retry might.
type FatalConfigError struct {
	Service string
	Message string
	Err     error
}

func (e *FatalConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal configuration failure for %s: %s: %v", e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("fatal configuration failure for %s: %s", e.Service, e.Message)
}

func (e *FatalConfigError) Unwrap() error {
	return e.Err
}

// NewFatalConfigError creates an unrecoverable configuration failure.
func NewFatalConfigError(service, message string, err error) *FatalConfigError {
	return &FatalConfigError{Service: service, Message: message, Err: err}
}

// InvariantViolationError reports a state-machine bug, such as
// materializing a toolkit that is not configured. Never swallowed.
type InvariantViolationError struct {
	Service string
	Message string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Service, e.Message)
}

// NewInvariantViolationError creates a programming-error fault.
func NewInvariantViolationError(service, message string) *InvariantViolationError {
	return &InvariantViolationError{Service: service, Message: message}
}
