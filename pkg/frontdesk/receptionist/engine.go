// Package receptionist – engine.go implements the turn-based SMS
// conversation loop: append the inbound message, ask the model for a
// reply with tools offered, execute any tool calls, then ask again for
// the final reply with no tools.
package receptionist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// FallbackReply is returned whenever the completion service fails.
// A degraded reply beats silence.
const FallbackReply = "Sorry, we're having a little trouble on our end. " +
	"Please try again in a minute, or call us directly and we'll get you sorted."

// mediaAnnotation is appended to inbound SMS turns carrying media, since
// the engine has no image understanding.
const mediaAnnotation = " [customer attached a photo — acknowledge it and note it on the lead]"

// Engine is the SMS conversation engine. One inbound message is processed
// at a time per phone number; different numbers proceed concurrently.
type Engine struct {
	sessions *SessionStore
	llm      Completer
	exec     *ToolExecutor
	tools    *Tools
	logger   *slog.Logger
}

// NewEngine creates the SMS engine.
func NewEngine(sessions *SessionStore, llm Completer, exec *ToolExecutor, tools *Tools, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions: sessions,
		llm:      llm,
		exec:     exec,
		tools:    tools,
		logger:   logger.With("component", "sms-engine"),
	}
}

// ProcessMessage handles one inbound SMS and returns the reply text.
// Completion-service failures yield the fallback reply and roll the
// session back so only the customer's message is kept in history.
func (e *Engine) ProcessMessage(ctx context.Context, phone, text string, hasMedia bool) (string, error) {
	session := e.sessions.GetOrCreate(phone, "sms")

	// Serialize whole turns per phone number.
	session.turnMu.Lock()
	defer session.turnMu.Unlock()

	ctx = ContextWithCall(ctx, CallInfo{Channel: "sms", CallerPhone: phone})

	inbound := text
	if hasMedia {
		inbound += mediaAnnotation
	}
	session.AppendTurn(Turn{Role: "user", Content: inbound})

	// History up to and including the inbound message survives any
	// failure below; everything after it is rolled back.
	committed := session.TurnCount()

	resp, err := e.llm.CompleteWithTools(ctx, toChatMessages(session.Turns()), e.exec.Definitions())
	if err != nil {
		e.logger.Error("completion failed, sending fallback", "phone", phone, "error", err)
		session.TruncateTurns(committed)
		return FallbackReply, nil
	}

	escalatedThisTurn := false

	if resp.Kind == ReplyToolCalls {
		session.AppendTurn(Turn{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			result := e.exec.Execute(ctx, call)
			if result.Err == nil && call.Function.Name == "escalate_conversation" {
				escalatedThisTurn = true
			}
			if call.Function.Name == "capture_lead" {
				e.rememberLeadFields(session, call)
			}
			session.AppendTurn(Turn{Role: "tool", Content: result.Content, ToolCallID: call.ID})
		}

		// Second, final completion with no tools offered.
		resp, err = e.llm.CompleteWithTools(ctx, toChatMessages(session.Turns()), nil)
		if err != nil {
			e.logger.Error("final completion failed, sending fallback", "phone", phone, "error", err)
			session.TruncateTurns(committed)
			return FallbackReply, nil
		}
	}

	reply := resp.Content
	if reply == "" {
		reply = FallbackReply
	}
	session.AppendTurn(Turn{Role: "assistant", Content: reply})

	// Keyword fallback: only when no tool call already escalated this
	// turn, so one message never produces two escalation events.
	if !escalatedThisTurn {
		if reason, found := DetectEscalation(text); found {
			if _, err := e.tools.EscalateDirect(ctx, reason, fmt.Sprintf("Keyword match in SMS: %q", text)); err != nil {
				e.logger.Error("keyword escalation failed", "phone", phone, "error", err)
			}
		}
	}

	return reply, nil
}

// rememberLeadFields accumulates capture_lead arguments onto the session
// so partially-filled lead data survives across turns.
func (e *Engine) rememberLeadFields(session *Session, call ToolCall) {
	args := map[string]any{}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return
	}
	fields := map[string]string{}
	for k, v := range args {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	session.MergeLeadDraft(fields)
}

// toChatMessages converts session turns to the wire format.
func toChatMessages(turns []Turn) []ChatMessage {
	out := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, ChatMessage{
			Role:       t.Role,
			Content:    t.Content,
			ToolCalls:  t.ToolCalls,
			ToolCallID: t.ToolCallID,
		})
	}
	return out
}
