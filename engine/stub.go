package engine

import (
	"context"
	"strings"
	"sync/atomic"
)

// Stub is a scripted engine for tests. It replays Fragments for each
// call and counts invocations.
type Stub struct {
	// Fragments are the text pieces emitted per generation. Generate
	// returns them joined.
	Fragments []string

	// Err, when set, is returned by both call paths.
	Err error

	// StreamingUnsupported makes GenerateStreaming return
	// ErrStreamingUnsupported.
	StreamingUnsupported bool

	generateCalls  atomic.Int64
	streamingCalls atomic.Int64

	// LastRequest holds the most recent request for assertions.
	LastRequest atomic.Pointer[Request]
}

// Generate replays the scripted fragments as one completion.
func (s *Stub) Generate(ctx context.Context, req *Request) (*Result, error) {
	s.generateCalls.Add(1)
	s.LastRequest.Store(req)

	if s.Err != nil {
		return nil, s.Err
	}

	content := strings.Join(s.Fragments, "")
	return &Result{
		Content:      content,
		FinishReason: "stop",
		Usage: Usage{
			CompletionTokens: len(s.Fragments),
			TotalTokens:      len(s.Fragments),
		},
	}, nil
}

// GenerateStreaming replays the scripted fragments one per channel send.
func (s *Stub) GenerateStreaming(ctx context.Context, req *Request) (<-chan string, error) {
	s.streamingCalls.Add(1)
	s.LastRequest.Store(req)

	if s.StreamingUnsupported {
		return nil, ErrStreamingUnsupported
	}
	if s.Err != nil {
		return nil, s.Err
	}

	fragments := make(chan string, len(s.Fragments))
	go func() {
		defer close(fragments)
		for _, f := range s.Fragments {
			select {
			case fragments <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return fragments, nil
}

// GenerateCalls reports how many times Generate ran.
func (s *Stub) GenerateCalls() int {
	return int(s.generateCalls.Load())
}

// StreamingCalls reports how many times GenerateStreaming ran.
func (s *Stub) StreamingCalls() int {
	return int(s.streamingCalls.Load())
}

// TotalCalls reports all engine invocations.
func (s *Stub) TotalCalls() int {
	return s.GenerateCalls() + s.StreamingCalls()
}

// Compile-time interface check
var _ Engine = (*Stub)(nil)
