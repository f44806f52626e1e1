package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentllm/agentllm/config"
	"github.com/agentllm/agentllm/internal/httpclient"
)

// ============================================================================
// OPENAI-COMPATIBLE ENGINE
// ============================================================================

// OpenAIEngine implements Engine against any OpenAI-compatible
// chat-completions API.
type OpenAIEngine struct {
	config *config.EngineConfig
	client *httpclient.Client
}

type openAIRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []openAITool `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
	Stream      bool         `json:"stream"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Error   *openAIError         `json:"error,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content string `json:"content"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIEngine creates an engine from config.
func NewOpenAIEngine(cfg *config.EngineConfig) (*OpenAIEngine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OpenAIEngine{
		config: cfg,
		client: httpclient.New(
			httpclient.WithTimeout(time.Duration(cfg.Timeout) * time.Second),
		),
	}, nil
}

// WithBaseURL sets a custom API host (useful for proxies or local servers).
func (e *OpenAIEngine) WithBaseURL(baseURL string) *OpenAIEngine {
	e.config.Host = strings.TrimSuffix(baseURL, "/")
	return e
}

// Generate produces a complete response for the request.
func (e *OpenAIEngine) Generate(ctx context.Context, req *Request) (*Result, error) {
	apiReq := e.buildRequest(req, false)

	response, err := e.makeRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("engine API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]
	return &Result{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        response.Usage,
	}, nil
}

// GenerateStreaming produces text fragments on the returned channel.
func (e *OpenAIEngine) GenerateStreaming(ctx context.Context, req *Request) (<-chan string, error) {
	apiReq := e.buildRequest(req, true)

	fragments := make(chan string, 100)

	go func() {
		defer close(fragments)

		if err := e.makeStreamingRequest(ctx, apiReq, fragments); err != nil {
			select {
			case fragments <- fmt.Sprintf("Error: %v", err):
			case <-ctx.Done():
			}
		}
	}()

	return fragments, nil
}

// buildRequest assembles the API payload. Instructions become a single
// system message ahead of the conversation.
func (e *OpenAIEngine) buildRequest(req *Request, stream bool) openAIRequest {
	model := req.Model
	if model == "" {
		model = e.config.Model
	}
	temperature := e.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = e.config.MaxTokens
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	if len(req.Instructions) > 0 {
		messages = append(messages, Message{
			Role:    "system",
			Content: strings.Join(req.Instructions, "\n\n"),
		})
	}
	messages = append(messages, req.Messages...)

	apiReq := openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}

	for _, tool := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, openAITool{Type: "function", Function: tool})
	}

	return apiReq
}

func (e *OpenAIEngine) newHTTPRequest(ctx context.Context, apiReq openAIRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
	return httpReq, nil
}

func (e *OpenAIEngine) makeRequest(ctx context.Context, apiReq openAIRequest) (*openAIResponse, error) {
	httpReq, err := e.newHTTPRequest(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		// Even on error, read the response body for better error messages
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("failed to make request: %w - response: %s", err, string(body))
			}
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}

func (e *OpenAIEngine) makeStreamingRequest(ctx context.Context, apiReq openAIRequest, fragments chan<- string) error {
	httpReq, err := e.newHTTPRequest(ctx, apiReq)
	if err != nil {
		return err
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		// Even on error, read the response body for better error messages
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return fmt.Errorf("failed to make request: %w - response: %s", err, string(body))
			}
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Read the SSE stream line by line
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}

		jsonData := strings.TrimPrefix(line, "data: ")
		if jsonData == "[DONE]" {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal([]byte(jsonData), &streamResp); err != nil {
			return fmt.Errorf("failed to decode streaming response: %w, data: %s", err, jsonData)
		}

		if streamResp.Error != nil {
			return fmt.Errorf("engine API error: %s", streamResp.Error.Message)
		}

		if len(streamResp.Choices) > 0 {
			choice := streamResp.Choices[0]
			if choice.Delta.Content != "" {
				select {
				case fragments <- choice.Delta.Content:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if choice.FinishReason != "" {
				break
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read streaming response: %w", err)
	}
	return nil
}

// Compile-time interface check
var _ Engine = (*OpenAIEngine)(nil)
