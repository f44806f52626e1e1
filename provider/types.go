// Package provider exposes registered agents behind an OpenAI-compatible
// chat-completions HTTP surface. It extracts caller identity, caches one
// agent wrapper per conversation, and normalizes responses to a fixed
// chunk shape for streaming proxies.
package provider

import (
	"github.com/agentllm/agentllm/engine"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatMessage is one OpenAI-format conversation message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request body of POST /v1/chat/completions.
// Temperature stays a pointer end to end: an explicit 0 requests
// deterministic sampling and must not collapse into the engine default.
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []ChatMessage  `json:"messages"`
	Stream      bool           `json:"stream,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	User        string         `json:"user,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChatCompletionChoice is one completion alternative. Exactly one is
// ever produced.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   engine.Usage           `json:"usage"`
}

// Model is one entry of GET /v1/models.
type Model struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	OwnedBy     string `json:"owned_by"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// ModelList is the response body of GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorBody is the OpenAI-style error payload.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse wraps ErrorBody the way OpenAI clients expect.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// lastUserMessage returns the most recent user-role message. When none
// exists, all message contents are concatenated instead.
func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}

	combined := ""
	for i, msg := range messages {
		if i > 0 {
			combined += " "
		}
		combined += msg.Content
	}
	return combined
}
