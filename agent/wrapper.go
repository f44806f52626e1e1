package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/agentllm/agentllm/engine"
)

// ============================================================================
// AGENT WRAPPER
// Per-(user, session) façade gating every call on the configurator.
// ============================================================================

// Chunk is the fixed wire chunk shape for streaming responses. Text always
// carries an incremental fragment, never accumulated output.
type Chunk struct {
	Text         string       `json:"text"`
	FinishReason *string      `json:"finish_reason"`
	Index        int          `json:"index"`
	IsFinished   bool         `json:"is_finished"`
	ToolUse      any          `json:"tool_use"`
	Usage        engine.Usage `json:"usage"`
}

// Response is a complete, non-streaming result.
type Response struct {
	Content      string
	FinishReason string
	Usage        engine.Usage
}

// Wrapper owns at most one built agent for a (user, session) pair and
// intercepts every call to drive the configuration state machine first.
type Wrapper struct {
	configurator *Configurator
	userID       string
	sessionID    string

	mu    sync.Mutex
	built *BuiltAgent
}

// NewWrapper creates a wrapper for one (user, session) pair.
func NewWrapper(configurator *Configurator, userID, sessionID string) *Wrapper {
	return &Wrapper{
		configurator: configurator,
		userID:       userID,
		sessionID:    sessionID,
	}
}

// Configurator returns the wrapper's configurator.
func (w *Wrapper) Configurator() *Configurator { return w.configurator }

// Invalidate discards the cached built agent. In-flight calls keep the
// instance they already hold; the next call rebuilds.
func (w *Wrapper) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.built = nil
}

// builtAgent returns the cached agent or builds a fresh one. Build
// failures are never cached: the next call retries the build.
func (w *Wrapper) builtAgent(ctx context.Context) (*BuiltAgent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.built != nil {
		return w.built, nil
	}

	built, err := w.configurator.BuildAgent(ctx, w.userID)
	if err != nil {
		return nil, err
	}
	w.built = built
	return built, nil
}

// handleConfiguration runs the gating state machine. A non-nil response
// means the message was consumed by the configuration layer.
func (w *Wrapper) handleConfiguration(ctx context.Context, message string) (*Response, error) {
	result, err := w.configurator.HandleMessage(ctx, message, w.userID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if result.CredentialStored {
		// New credentials mean stale tool objects; force a rebuild.
		w.Invalidate()
	}

	return &Response{Content: result.Text, FinishReason: "stop"}, nil
}

// Run executes one complete turn.
func (w *Wrapper) Run(ctx context.Context, message string) (*Response, error) {
	if configResp, err := w.handleConfiguration(ctx, message); err != nil || configResp != nil {
		return configResp, err
	}

	built, err := w.builtAgent(ctx)
	if err != nil {
		return nil, err
	}

	result, err := built.Run(ctx, message, w.sessionID)
	if err != nil {
		return nil, err
	}

	return &Response{
		Content:      result.Content,
		FinishReason: result.FinishReason,
		Usage:        result.Usage,
	}, nil
}

// Stream executes one streaming turn. The returned channel delivers
// fragments in emission order and is closed after exactly one terminal
// chunk. Abandoning the channel cancels via ctx without corrupting
// subsequent calls on the same wrapper.
func (w *Wrapper) Stream(ctx context.Context, message string) (<-chan Chunk, error) {
	if configResp, err := w.handleConfiguration(ctx, message); err != nil {
		return nil, err
	} else if configResp != nil {
		// A configuration prompt streams as one content chunk plus the
		// terminal chunk, indistinguishable from assistant text.
		return replayChunks(configResp.Content), nil
	}

	built, err := w.builtAgent(ctx)
	if err != nil {
		return nil, err
	}

	fragments, err := built.Stream(ctx, message, w.sessionID)
	if errors.Is(err, engine.ErrStreamingUnsupported) {
		result, runErr := built.Run(ctx, message, w.sessionID)
		if runErr != nil {
			return nil, runErr
		}
		return singleTerminalChunk(result), nil
	}
	if err != nil {
		return nil, err
	}

	out := make(chan Chunk, 100)
	go func() {
		defer close(out)

		count := 0
		for fragment := range fragments {
			count++
			select {
			case out <- Chunk{Text: fragment}:
			case <-ctx.Done():
				return
			}
		}

		finish := "stop"
		terminal := Chunk{
			FinishReason: &finish,
			IsFinished:   true,
			Usage:        engine.Usage{CompletionTokens: count, TotalTokens: count},
		}
		select {
		case out <- terminal:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// replayChunks emits text as one content chunk followed by the terminal
// chunk. Configuration prompts never reach the engine, so the terminal
// usage stays zero.
func replayChunks(text string) <-chan Chunk {
	out := make(chan Chunk, 2)
	out <- Chunk{Text: text}
	finish := "stop"
	out <- Chunk{
		FinishReason: &finish,
		IsFinished:   true,
	}
	close(out)
	return out
}

// singleTerminalChunk wraps a full sync result as one terminal chunk,
// used when the engine cannot stream.
func singleTerminalChunk(result *engine.Result) <-chan Chunk {
	out := make(chan Chunk, 1)
	finish := result.FinishReason
	if finish == "" {
		finish = "stop"
	}
	out <- Chunk{
		Text:         result.Content,
		FinishReason: &finish,
		IsFinished:   true,
		Usage:        result.Usage,
	}
	close(out)
	return out
}
