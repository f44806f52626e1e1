package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentllm/agentllm/agent"
	"github.com/agentllm/agentllm/config"
	"github.com/agentllm/agentllm/metrics"
	"github.com/agentllm/agentllm/toolkit"
)

// ============================================================================
// PROVIDER SERVER
// ============================================================================

// modelPrefix is stripped from incoming model names, so both
// "agentllm/release-manager" and "release-manager" resolve the same.
const modelPrefix = "agentllm/"

// Server is the HTTP provider adapter over an agent registry.
type Server struct {
	registry *agent.Registry
	cache    *wrapperCache
	metrics  *metrics.Metrics
	logger   *slog.Logger

	httpServer *http.Server
}

// NewServer creates a provider server. cfg controls the listen address
// and the wrapper cache bound.
func NewServer(registry *agent.Registry, cfg *config.Config, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		registry: registry,
		cache:    newWrapperCache(cfg.Cache.MaxWrappers),
		metrics:  m,
		logger:   slog.Default().With("component", "provider"),
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi route tree. Exposed for httptest.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/v1/models", s.handleModels)
	r.Post("/v1/chat/completions", s.handleChatCompletions)

	return r
}

// Start runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("provider server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("provider server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	list := ModelList{Object: "list"}
	for _, meta := range s.registry.List() {
		list.Data = append(list.Data, Model{
			ID:          meta.Name,
			Object:      "model",
			OwnedBy:     "agentllm",
			Description: meta.Description,
			Mode:        meta.Mode,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	identity, err := extractIdentity(r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	// The wire model names the agent type; the engine model comes from
	// engine configuration.
	agentType := strings.TrimPrefix(req.Model, modelPrefix)
	params := agent.Params{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	key := cacheKey(agentType, identity.UserID, identity.SessionID, params)
	wrapper, err := s.cache.getOrCreate(key, func() (*agent.Wrapper, error) {
		return s.registry.NewWrapper(agentType, identity.UserID, identity.SessionID, params)
	})
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	message := lastUserMessage(req.Messages)
	s.logger.Info("chat completion",
		"agent", agentType,
		"user_id", identity.UserID,
		"session_id", identity.SessionID,
		"stream", req.Stream,
		"message_length", len(message))

	if req.Stream {
		s.streamCompletion(w, r, wrapper, req.Model, message)
		return
	}
	s.syncCompletion(w, r, wrapper, req.Model, message)
}

func (s *Server) syncCompletion(w http.ResponseWriter, r *http.Request, wrapper *agent.Wrapper, model, message string) {
	resp, err := wrapper.Run(r.Context(), message)
	if err != nil {
		s.writeAgentError(w, err)
		return
	}

	out := ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{{
			Message:      ChatMessage{Role: "assistant", Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: resp.Usage,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, wrapper *agent.Wrapper, model, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported by connection")
		return
	}

	chunks, err := wrapper.Stream(r.Context(), message)
	if err != nil {
		// Nothing written yet, a plain error object is still possible
		s.writeAgentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			s.logger.Error("failed to marshal chunk", "error", err)
			break
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away; the wrapper pump stops via request context
			return
		}
		flusher.Flush()
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// writeAgentError translates agent-layer failures into HTTP errors
// before any bytes have been streamed.
func (s *Server) writeAgentError(w http.ResponseWriter, err error) {
	var regErr *agent.RegistryError
	if errors.As(err, &regErr) {
		if strings.Contains(regErr.Message, "unknown agent type") {
			writeError(w, http.StatusNotFound, "invalid_request_error", regErr.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", regErr.Error())
		return
	}

	var fatal *toolkit.FatalConfigError
	var violation *toolkit.InvariantViolationError
	var engineErr *agent.EngineError
	if errors.As(err, &fatal) || errors.As(err, &violation) || errors.As(err, &engineErr) {
		s.logger.Error("agent call failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	s.logger.Error("unexpected provider error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{
		Message: message,
		Type:    errType,
		Code:    http.StatusText(status),
	}})
}
