package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agentllm/agentllm/engine"
	"github.com/agentllm/agentllm/history"
	"github.com/agentllm/agentllm/toolkit"
	"github.com/agentllm/agentllm/utils"
)

// historyWindow is how many past messages are replayed to the engine.
const historyWindow = 10

// BuiltAgent is the execution-ready combination of instructions, tools,
// and model parameters for one user. Immutable once built; the wrapper
// discards and rebuilds it when configuration changes.
type BuiltAgent struct {
	name         string
	userID       string
	instructions []string
	tools        []toolkit.Toolkit
	params       Params
	engine       engine.Engine
	history      history.Store
}

// Name returns the agent type name.
func (a *BuiltAgent) Name() string { return a.name }

// Instructions returns the assembled instruction set.
func (a *BuiltAgent) Instructions() []string { return a.instructions }

// Tools returns the materialized capability objects.
func (a *BuiltAgent) Tools() []toolkit.Toolkit { return a.tools }

// Run executes one full generation, replaying recent conversation
// history and recording both sides of the turn.
func (a *BuiltAgent) Run(ctx context.Context, message, sessionID string) (*engine.Result, error) {
	req, err := a.buildRequest(ctx, message, sessionID)
	if err != nil {
		return nil, err
	}

	if err := a.recordMessage(ctx, sessionID, "user", message); err != nil {
		return nil, err
	}

	result, err := a.engine.Generate(ctx, req)
	if err != nil {
		return nil, &EngineError{Agent: a.name, Message: "generation failed", Err: err}
	}

	// Engines without usage reporting get a rough estimate
	if result.Usage.TotalTokens == 0 && result.Content != "" {
		result.Usage.CompletionTokens = utils.EstimateTokens(result.Content)
		result.Usage.TotalTokens = result.Usage.CompletionTokens
	}

	if err := a.recordMessage(ctx, sessionID, "assistant", result.Content); err != nil {
		return nil, err
	}
	return result, nil
}

// Stream executes one streaming generation. Fragments are re-emitted as
// they arrive; the accumulated text is recorded to history when the
// engine closes its channel. Engines that cannot stream surface
// engine.ErrStreamingUnsupported to the caller for sync fallback.
func (a *BuiltAgent) Stream(ctx context.Context, message, sessionID string) (<-chan string, error) {
	req, err := a.buildRequest(ctx, message, sessionID)
	if err != nil {
		return nil, err
	}

	fragments, err := a.engine.GenerateStreaming(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := a.recordMessage(ctx, sessionID, "user", message); err != nil {
		return nil, err
	}

	out := make(chan string, 100)
	go func() {
		defer close(out)

		var full strings.Builder
		for fragment := range fragments {
			full.WriteString(fragment)
			select {
			case out <- fragment:
			case <-ctx.Done():
				return
			}
		}

		if full.Len() > 0 {
			if err := a.recordMessage(ctx, sessionID, "assistant", full.String()); err != nil {
				slog.Warn("failed to record streamed response", "agent", a.name, "error", err)
			}
		}
	}()

	return out, nil
}

func (a *BuiltAgent) buildRequest(ctx context.Context, message, sessionID string) (*engine.Request, error) {
	recent, err := a.history.Recent(ctx, a.userID, sessionID, historyWindow)
	if err != nil {
		return nil, &EngineError{Agent: a.name, Message: "failed to load conversation history", Err: err}
	}

	messages := make([]engine.Message, 0, len(recent)+1)
	for _, msg := range recent {
		messages = append(messages, engine.Message{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, engine.Message{Role: "user", Content: message})

	var toolDefs []engine.ToolDefinition
	for _, tk := range a.tools {
		toolDefs = append(toolDefs, engine.ToolDefinition{
			Name:        tk.Name(),
			Description: tk.Description(),
		})
	}

	return &engine.Request{
		Model:        a.params.Model,
		Instructions: a.instructions,
		Messages:     messages,
		Tools:        toolDefs,
		Temperature:  a.params.Temperature,
		MaxTokens:    a.params.MaxTokens,
	}, nil
}

func (a *BuiltAgent) recordMessage(ctx context.Context, sessionID, role, content string) error {
	if err := a.history.Append(ctx, a.userID, sessionID, history.Message{Role: role, Content: content}); err != nil {
		return &EngineError{Agent: a.name, Message: "failed to record conversation turn", Err: err}
	}
	return nil
}
