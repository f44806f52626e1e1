package provider

import (
	"fmt"
	"net/http"
)

// ============================================================================
// IDENTITY EXTRACTION
// ============================================================================

// Identity is the caller identity a request resolves to. UserID is
// mandatory; SessionID may be empty and is normalized downstream.
type Identity struct {
	UserID    string
	SessionID string
}

// IdentityError reports a request that resolves to no user identity.
type IdentityError struct {
	Message string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity extraction failed: %s", e.Message)
}

// extractIdentity resolves user and session identity from a request.
// Sources are checked in priority order:
//  1. body metadata (session_id or chat_id, user_id)
//  2. proxy headers (X-OpenWebUI-Chat-Id, X-OpenWebUI-User-Id,
//     X-OpenWebUI-User-Email)
//  3. body metadata fallbacks (conversation_id)
//  4. the top-level user field
//
// A request with no resolvable user is rejected: credentials are scoped
// per user and an anonymous request could read another user's agent.
func extractIdentity(r *http.Request, req *ChatCompletionRequest) (Identity, error) {
	var id Identity

	// 1. Body metadata from proxy pipe functions
	id.SessionID = metadataString(req.Metadata, "session_id", "chat_id")
	id.UserID = metadataString(req.Metadata, "user_id")

	// 2. Forwarded proxy headers
	if id.SessionID == "" {
		id.SessionID = r.Header.Get("X-OpenWebUI-Chat-Id")
	}
	if id.UserID == "" {
		id.UserID = r.Header.Get("X-OpenWebUI-User-Id")
		if id.UserID == "" {
			id.UserID = r.Header.Get("X-OpenWebUI-User-Email")
		}
	}

	// 3. Generic metadata fallback
	if id.SessionID == "" {
		id.SessionID = metadataString(req.Metadata, "conversation_id")
	}

	// 4. Top-level user field
	if id.UserID == "" {
		id.UserID = req.User
	}

	if id.UserID == "" {
		return Identity{}, &IdentityError{Message: "no user_id in metadata, headers, or user field"}
	}
	return id, nil
}

// metadataString returns the first non-empty string value among keys.
func metadataString(metadata map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
