// Package receptionist – llm.go implements the completion-service client
// for chat completions with function calling / tool use support.
// Uses the OpenAI-compatible API format, which works with OpenAI and any
// compatible endpoint.
package receptionist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ---------- Client ----------

// Completer is the narrow boundary the conversation engines and agents
// talk to. Every reply comes back as a tagged LLMResponse, so ambiguity
// handling (tool call vs text vs structured payload) lives in one place.
type Completer interface {
	CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*LLMResponse, error)
}

// LLMClient handles communication with the LLM provider API.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a new LLM client from config.
func NewLLMClient(cfg *Config, logger *slog.Logger) *LLMClient {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &LLMClient{
		baseURL: baseURL,
		apiKey:  cfg.API.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "llm"),
	}
}

// ---------- Wire Types (OpenAI-compatible) ----------

// ChatMessage represents a message in the OpenAI chat format.
// Supports user, system, assistant (with optional tool_calls), and tool
// result messages.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// chatRequest is the OpenAI-compatible chat completions request.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// chatResponse is the OpenAI-compatible chat completions response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ---------- Tool Calling Types ----------

// ToolDefinition is an OpenAI-compatible tool definition for function calling.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a callable function exposed to the LLM.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and serialized arguments from the LLM.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ---------- Response Types ----------

// ReplyKind tags what the completion service actually returned.
type ReplyKind int

const (
	// ReplyText is a plain free-text assistant reply.
	ReplyText ReplyKind = iota

	// ReplyToolCalls means the model wants one or more tools executed
	// before it can answer.
	ReplyToolCalls
)

// LLMResponse holds the parsed response from a chat completion.
type LLMResponse struct {
	Kind         ReplyKind
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// APIError is returned for non-200 provider responses so callers can
// distinguish quota errors from everything else.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Body)
}

// IsQuotaError reports whether err looks like a rate-limit or quota
// failure from the provider. The scheduler uses this to back off.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "quota")
}

// ---------- Public Methods ----------

// Complete sends a simple chat completion request (no tools) and returns
// the text. Convenience wrapper for agents generating outreach content.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	messages := []ChatMessage{}
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userMessage})

	resp, err := c.CompleteWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteWithTools sends a chat completion request with optional tool
// definitions. If tools is nil/empty, behaves as a regular completion.
func (c *LLMClient) CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*LLMResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured. Run 'frontdesk config set-key' or set FRONTDESK_API_KEY")
	}

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", c.model,
		"messages", len(messages),
		"tools", len(tools),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	choice := chatResp.Choices[0]
	out := &LLMResponse{
		Kind:         ReplyText,
		Content:      strings.TrimSpace(choice.Message.Content),
		ToolCalls:    choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
	}
	if len(out.ToolCalls) > 0 {
		out.Kind = ReplyToolCalls
	}

	c.logger.Info("chat completion done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", choice.FinishReason,
		"tool_calls", len(out.ToolCalls),
	)

	return out, nil
}

// DecodeJSON extracts and unmarshals a JSON payload from model output.
// Models often wrap JSON in markdown fences or prose; this finds the
// first object or array and decodes it, so agents never hand-parse.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)

	// Strip markdown fences.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Find the first JSON object or array in surrounding prose.
	objStart := strings.IndexAny(s, "[{")
	if objStart < 0 {
		return fmt.Errorf("no JSON payload in model output")
	}
	open := s[objStart]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	objEnd := strings.LastIndexByte(s, close)
	if objEnd <= objStart {
		return fmt.Errorf("unterminated JSON payload in model output")
	}

	if err := json.Unmarshal([]byte(s[objStart:objEnd+1]), v); err != nil {
		return fmt.Errorf("decoding model JSON: %w", err)
	}
	return nil
}

// truncate shortens s to max runes, appending an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
