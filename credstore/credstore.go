// Package credstore persists per-user credentials for toolkit
// configurations. Records are keyed by (service, user_id) so one user
// can hold credentials for several services and one service can hold
// credentials for many users.
package credstore

import "context"

// Store is the credential persistence boundary.
//
// Payloads are small string maps (tokens, urls, emails). Implementations
// must be safe for concurrent use.
type Store interface {
	// Upsert stores or replaces the payload for (service, userID).
	Upsert(ctx context.Context, service, userID string, payload map[string]string) error

	// Get returns the payload for (service, userID). The bool reports
	// whether a record exists; a missing record is not an error.
	Get(ctx context.Context, service, userID string) (map[string]string, bool, error)

	// Delete removes the record for (service, userID). Deleting a
	// missing record is a no-op.
	Delete(ctx context.Context, service, userID string) error
}

// ============================================================================
// Errors
// ============================================================================

// StoreError describes a credential store failure.
type StoreError struct {
	Op      string // operation that failed
	Service string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return "credstore " + e.Op + " [" + e.Service + "]: " + e.Message + ": " + e.Err.Error()
	}
	return "credstore " + e.Op + " [" + e.Service + "]: " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op, service, message string, err error) *StoreError {
	return &StoreError{Op: op, Service: service, Message: message, Err: err}
}
