// Package receptionist – tool_executor.go manages the registry of
// callable tools and dispatches tool calls from the model to the
// appropriate handlers. Both the SMS engine and the voice bridge execute
// tools through one executor.
package receptionist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultToolTimeout is the maximum time a single tool execution can take.
const DefaultToolTimeout = 30 * time.Second

// CallInfo identifies the conversation a tool call originates from.
// The tool layer normalizes lead source and phone from it when the
// model omits them.
type CallInfo struct {
	// Channel is "sms" or "voice".
	Channel string

	// CallerPhone is the customer's number in E.164.
	CallerPhone string

	// CallID is the telephony call SID for voice conversations.
	CallID string
}

// ctxKeyCallInfo is the context key carrying CallInfo through tool
// execution, keeping per-call state goroutine-safe.
type ctxKeyCallInfo struct{}

// ContextWithCall returns a context carrying the originating call info.
func ContextWithCall(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, ctxKeyCallInfo{}, info)
}

// CallFromContext extracts the call info from a context.
// Returns a zero CallInfo if not set.
func CallFromContext(ctx context.Context) CallInfo {
	if v, ok := ctx.Value(ctxKeyCallInfo{}).(CallInfo); ok {
		return v
	}
	return CallInfo{}
}

// ToolHandlerFunc is the signature for tool execution handlers.
// Receives parsed arguments and returns the result or an error.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// registeredTool bundles a tool definition with its handler.
type registeredTool struct {
	Definition ToolDefinition
	Handler    ToolHandlerFunc
}

// ToolResult holds the output of a single tool execution.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	Err        error
}

// ToolExecutor dispatches tool calls to registered handlers.
type ToolExecutor struct {
	tools   map[string]registeredTool
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewToolExecutor creates an empty executor.
func NewToolExecutor(logger *slog.Logger) *ToolExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{
		tools:   make(map[string]registeredTool),
		timeout: DefaultToolTimeout,
		logger:  logger.With("component", "tools"),
	}
}

// Register adds a tool to the registry, replacing any previous handler
// with the same name.
func (e *ToolExecutor) Register(def ToolDefinition, handler ToolHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools[def.Function.Name] = registeredTool{Definition: def, Handler: handler}
}

// Definitions returns the tool manifest offered to the model.
func (e *ToolExecutor) Definitions() []ToolDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(e.tools))
	for _, t := range e.tools {
		out = append(out, t.Definition)
	}
	return out
}

// Execute runs one tool call and returns its result. Malformed arguments
// and handler errors are surfaced as labeled errors in the result, never
// as a crash of the conversation.
func (e *ToolExecutor) Execute(ctx context.Context, call ToolCall) ToolResult {
	result := ToolResult{ToolCallID: call.ID, Name: call.Function.Name}

	e.mu.RLock()
	tool, exists := e.tools[call.Function.Name]
	e.mu.RUnlock()

	if !exists {
		result.Err = fmt.Errorf("unknown tool %q", call.Function.Name)
		result.Content = fmt.Sprintf(`{"error": "unknown tool %s"}`, call.Function.Name)
		return result
	}

	args := map[string]any{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			e.logger.Warn("malformed tool arguments",
				"tool", call.Function.Name, "error", err)
			result.Err = fmt.Errorf("malformed arguments: %w", err)
			result.Content = `{"error": "malformed tool arguments"}`
			return result
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := tool.Handler(execCtx, args)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Error("tool execution failed",
			"tool", call.Function.Name, "duration_ms", elapsed.Milliseconds(), "error", err)
		result.Err = err
		result.Content = fmt.Sprintf(`{"error": %q}`, err.Error())
		return result
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		result.Err = fmt.Errorf("encoding tool result: %w", err)
		result.Content = `{"error": "unencodable tool result"}`
		return result
	}
	result.Content = string(encoded)

	e.logger.Info("tool executed",
		"tool", call.Function.Name, "duration_ms", elapsed.Milliseconds())
	return result
}
