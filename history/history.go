// Package history stores conversation messages scoped by (user_id,
// session_id). Agents share one store; each built agent reads and writes
// only its own user/session slice.
package history

import (
	"context"
	"time"
)

// DefaultSessionID is used when a request carries no session identifier.
const DefaultSessionID = "default"

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the conversation history boundary.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a message to the (userID, sessionID) conversation.
	Append(ctx context.Context, userID, sessionID string, msg Message) error

	// Recent returns up to count most recent messages in chronological
	// order. count <= 0 returns the full conversation.
	Recent(ctx context.Context, userID, sessionID string, count int) ([]Message, error)

	// Clear removes the (userID, sessionID) conversation. Idempotent.
	Clear(ctx context.Context, userID, sessionID string) error
}

// NormalizeSessionID maps an empty session id to the default session.
func NormalizeSessionID(sessionID string) string {
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}
