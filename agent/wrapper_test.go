package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentllm/agentllm/engine"
)

func collectChunks(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var chunks []Chunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func TestStreamMatchesRun(t *testing.T) {
	// Concatenating every fragment must reproduce the synchronous
	// result for the same engine output.
	ctx := context.Background()

	run := newFixture(t)
	run.configure(t)
	resp, err := run.wrapper.Run(ctx, "what's the weather")
	require.NoError(t, err)

	stream := newFixture(t)
	stream.configure(t)
	ch, err := stream.wrapper.Stream(ctx, "what's the weather")
	require.NoError(t, err)
	chunks := collectChunks(t, ch)

	var text strings.Builder
	terminals := 0
	for _, chunk := range chunks {
		text.WriteString(chunk.Text)
		if chunk.IsFinished {
			terminals++
		}
	}

	assert.Equal(t, resp.Content, text.String())
	assert.Equal(t, 1, terminals)

	// The terminal chunk is last and counts the emitted fragments
	last := chunks[len(chunks)-1]
	require.True(t, last.IsFinished)
	require.NotNil(t, last.FinishReason)
	assert.Equal(t, "stop", *last.FinishReason)
	assert.Equal(t, len(chunks)-1, last.Usage.CompletionTokens)
}

func TestStreamConfigPrompt(t *testing.T) {
	// A configuration prompt streams as one content chunk plus the
	// terminal chunk.
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.wrapper.Stream(ctx, "hello")
	require.NoError(t, err)
	chunks := collectChunks(t, ch)

	require.Len(t, chunks, 2)
	assert.Equal(t, f.jira.GetConfigPrompt(ctx, "user-1"), chunks[0].Text)
	assert.False(t, chunks[0].IsFinished)
	assert.True(t, chunks[1].IsFinished)

	// Nothing reached the engine, so the terminal chunk reports no usage
	assert.Zero(t, chunks[1].Usage.CompletionTokens)
	assert.Zero(t, chunks[1].Usage.TotalTokens)
	assert.Zero(t, f.stub.TotalCalls())
}

func TestStreamFallsBackWhenUnsupported(t *testing.T) {
	// An engine without streaming yields one terminal chunk carrying the
	// complete synchronous text.
	f := newFixture(t)
	f.stub.StreamingUnsupported = true
	f.configure(t)
	ctx := context.Background()

	ch, err := f.wrapper.Stream(ctx, "what's the weather")
	require.NoError(t, err)
	chunks := collectChunks(t, ch)

	require.Len(t, chunks, 1)
	assert.Equal(t, "sunny today", chunks[0].Text)
	assert.True(t, chunks[0].IsFinished)
	assert.Equal(t, 1, f.stub.GenerateCalls())
}

func TestStreamAbandonedDoesNotCorruptWrapper(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.wrapper.Stream(ctx, "first")
	require.NoError(t, err)
	cancel()
	for range ch {
	}

	// The wrapper still serves subsequent calls normally
	resp, err := f.wrapper.Run(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "sunny today", resp.Content)
}

func TestChunkWireShape(t *testing.T) {
	finish := "stop"
	chunk := Chunk{
		Text:         "hi",
		FinishReason: &finish,
		IsFinished:   true,
		Usage:        engine.Usage{CompletionTokens: 3, TotalTokens: 3},
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	for _, key := range []string{`"text"`, `"finish_reason"`, `"index"`, `"is_finished"`, `"tool_use"`, `"usage"`} {
		assert.Contains(t, string(data), key)
	}
}
