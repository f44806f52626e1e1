// Package engine defines the execution-engine boundary. An Engine accepts
// instructions, conversation messages, and tool definitions and produces
// either a full completion or a stream of text fragments.
package engine

import (
	"context"
	"errors"
)

// ErrStreamingUnsupported is returned by engines that cannot stream.
// Callers fall back to Generate and emit the result as a single fragment.
var ErrStreamingUnsupported = errors.New("engine does not support streaming")

// Message is a single conversation turn sent to the engine.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes a callable capability to the engine.
// Execution stays on our side; the engine only sees the contract.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Request carries everything an engine needs for one generation.
// Temperature is a pointer so an explicit 0 stays distinct from unset;
// nil defers to the engine's configured default.
type Request struct {
	Model        string
	Instructions []string
	Messages     []Message
	Tools        []ToolDefinition
	Temperature  *float64
	MaxTokens    int
}

// Usage reports token accounting for a completed generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a full, non-streaming generation.
type Result struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Engine is the execution boundary for agent generations.
type Engine interface {
	// Generate produces a complete response for the request.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// GenerateStreaming produces text fragments on the returned channel.
	// The channel is closed when the stream ends. Implementations that
	// cannot stream return ErrStreamingUnsupported.
	GenerateStreaming(ctx context.Context, req *Request) (<-chan string, error)
}
