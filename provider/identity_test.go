package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIdentityPriority(t *testing.T) {
	tests := []struct {
		name        string
		metadata    map[string]any
		headers     map[string]string
		user        string
		wantUser    string
		wantSession string
		wantErr     bool
	}{
		{
			name:        "body metadata wins over everything",
			metadata:    map[string]any{"session_id": "meta-sess", "user_id": "meta-user"},
			headers:     map[string]string{"X-OpenWebUI-Chat-Id": "hdr-sess", "X-OpenWebUI-User-Id": "hdr-user"},
			user:        "field-user",
			wantUser:    "meta-user",
			wantSession: "meta-sess",
		},
		{
			name:        "chat_id accepted as session alias",
			metadata:    map[string]any{"chat_id": "chat-42", "user_id": "u"},
			wantUser:    "u",
			wantSession: "chat-42",
		},
		{
			name:        "headers beat user field and generic metadata",
			metadata:    map[string]any{"conversation_id": "conv-1"},
			headers:     map[string]string{"X-OpenWebUI-Chat-Id": "hdr-sess", "X-OpenWebUI-User-Id": "hdr-user"},
			user:        "field-user",
			wantUser:    "hdr-user",
			wantSession: "hdr-sess",
		},
		{
			name:        "email header as user fallback",
			headers:     map[string]string{"X-OpenWebUI-User-Email": "a@example.com"},
			wantUser:    "a@example.com",
			wantSession: "",
		},
		{
			name:        "conversation_id when no session elsewhere",
			metadata:    map[string]any{"conversation_id": "conv-9"},
			user:        "field-user",
			wantUser:    "field-user",
			wantSession: "conv-9",
		},
		{
			name:        "user field alone",
			user:        "field-user",
			wantUser:    "field-user",
			wantSession: "",
		},
		{
			name:    "nothing resolvable",
			wantErr: true,
		},
		{
			name:     "non-string metadata ignored",
			metadata: map[string]any{"user_id": 42, "session_id": true},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			req := &ChatCompletionRequest{Metadata: tt.metadata, User: tt.user}

			id, err := extractIdentity(r, req)
			if tt.wantErr {
				require.Error(t, err)
				var idErr *IdentityError
				assert.ErrorAs(t, err, &idErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, id.UserID)
			assert.Equal(t, tt.wantSession, id.SessionID)
		})
	}
}

func TestLastUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		messages []ChatMessage
		want     string
	}{
		{
			name: "last user message wins",
			messages: []ChatMessage{
				{Role: "user", Content: "first"},
				{Role: "assistant", Content: "reply"},
				{Role: "user", Content: "second"},
			},
			want: "second",
		},
		{
			name: "no user message concatenates all",
			messages: []ChatMessage{
				{Role: "system", Content: "sys"},
				{Role: "assistant", Content: "reply"},
			},
			want: "sys reply",
		},
		{
			name: "empty list",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastUserMessage(tt.messages))
		})
	}
}
