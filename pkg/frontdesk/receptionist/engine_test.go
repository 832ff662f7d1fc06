package receptionist

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// scriptedCompleter replays a fixed sequence of responses.
type scriptedCompleter struct {
	responses []*LLMResponse
	errs      []error
	calls     int

	// lastMessages captures the history of the most recent request.
	lastMessages []ChatMessage
	lastTools    []ToolDefinition
}

func (s *scriptedCompleter) CompleteWithTools(_ context.Context, messages []ChatMessage, tools []ToolDefinition) (*LLMResponse, error) {
	idx := s.calls
	s.calls++
	s.lastMessages = messages
	s.lastTools = tools
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx >= len(s.responses) {
		return nil, fmt.Errorf("unexpected completion call %d", idx)
	}
	return s.responses[idx], nil
}

// fakeRecordStore records created leads and escalations in memory.
type fakeRecordStore struct {
	leads       []*store.Lead
	escalations []*store.Escalation
	leadErr     error
}

func (f *fakeRecordStore) CreateLead(l *store.Lead) error {
	if f.leadErr != nil {
		return f.leadErr
	}
	l.ID = int64(len(f.leads) + 1)
	l.Status = store.LeadStatusNew
	f.leads = append(f.leads, l)
	return nil
}

func (f *fakeRecordStore) CreateEscalation(e *store.Escalation) error {
	e.ID = int64(len(f.escalations) + 1)
	f.escalations = append(f.escalations, e)
	return nil
}

type fakeMessenger struct {
	sent []string
	fail bool
}

func (f *fakeMessenger) SendSMS(_ context.Context, to, body string) notify.Outcome {
	if f.fail {
		return notify.Outcome{Status: notify.StatusFailed, Err: fmt.Errorf("carrier down")}
	}
	f.sent = append(f.sent, to+": "+body)
	return notify.Outcome{Status: notify.StatusOK}
}

type fakeSheet struct {
	rows [][]any
	fail bool
}

func (f *fakeSheet) AppendRow(_ context.Context, values []any) notify.Outcome {
	if f.fail {
		return notify.Outcome{Status: notify.StatusFailed, Err: fmt.Errorf("sheets 500")}
	}
	f.rows = append(f.rows, values)
	return notify.Outcome{Status: notify.StatusOK}
}

type fakeWebhook struct {
	fired []any
	fail  bool
}

func (f *fakeWebhook) Fire(_ context.Context, payload any) notify.Outcome {
	if f.fail {
		return notify.Outcome{Status: notify.StatusFailed, Err: fmt.Errorf("endpoint down")}
	}
	f.fired = append(f.fired, payload)
	return notify.Outcome{Status: notify.StatusOK}
}

// newTestEngine wires an engine over in-memory fakes.
func newTestEngine(llm Completer) (*Engine, *fakeRecordStore, *fakeMessenger) {
	rs := &fakeRecordStore{}
	msgr := &fakeMessenger{}
	tools := NewTools(rs, msgr, &fakeSheet{}, &fakeWebhook{}, "+15559990000", nil)
	exec := NewToolExecutor(nil)
	tools.RegisterAll(exec)
	sessions := NewSessionStore(0, "You are the receptionist.", nil)
	return NewEngine(sessions, llm, exec, tools, nil), rs, msgr
}

func TestProcessMessage_PlainReply(t *testing.T) {
	llm := &scriptedCompleter{responses: []*LLMResponse{
		{Kind: ReplyText, Content: "We can help with that! What's your address?"},
	}}
	engine, rs, _ := newTestEngine(llm)

	reply, err := engine.ProcessMessage(context.Background(), "+15550001111", "my sink is clogged", false)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply != "We can help with that! What's your address?" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(rs.leads) != 0 {
		t.Errorf("no tool call was made, yet %d leads exist", len(rs.leads))
	}
	if llm.calls != 1 {
		t.Errorf("expected 1 completion call, got %d", llm.calls)
	}
	if len(llm.lastTools) != 2 {
		t.Errorf("expected both tools offered, got %d", len(llm.lastTools))
	}
}

func TestProcessMessage_ToolCallCapturesLead(t *testing.T) {
	llm := &scriptedCompleter{responses: []*LLMResponse{
		{
			Kind: ReplyToolCalls,
			ToolCalls: []ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: FunctionCall{
					Name:      "capture_lead",
					Arguments: `{"customer_name":"Dana","job_type":"water heater replacement","urgency":"urgent"}`,
				},
			}},
		},
		{Kind: ReplyText, Content: "Got it, Dana — we'll call you within the hour."},
	}}
	engine, rs, msgr := newTestEngine(llm)

	reply, err := engine.ProcessMessage(context.Background(), "+15550001111", "I need a plumber ASAP, water heater died", false)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(reply, "Dana") {
		t.Errorf("unexpected reply: %q", reply)
	}

	if len(rs.leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(rs.leads))
	}
	lead := rs.leads[0]
	if lead.Phone != "+15550001111" {
		t.Errorf("phone should come from the channel, got %q", lead.Phone)
	}
	if lead.Source != store.SourceSMS {
		t.Errorf("source should be SMS, got %q", lead.Source)
	}
	if lead.Status != store.LeadStatusNew {
		t.Errorf("new lead should have status new, got %q", lead.Status)
	}
	if len(msgr.sent) != 1 {
		t.Errorf("owner should be notified once, got %d messages", len(msgr.sent))
	}

	// The final completion must carry the tool result and offer no tools.
	if llm.calls != 2 {
		t.Fatalf("expected 2 completion calls, got %d", llm.calls)
	}
	if len(llm.lastTools) != 0 {
		t.Errorf("final completion must offer no tools, got %d", len(llm.lastTools))
	}
	var sawToolResult bool
	for _, m := range llm.lastMessages {
		if m.Role == "tool" && m.ToolCallID == "call_1" {
			sawToolResult = true
			if !strings.Contains(m.Content, `"success":true`) {
				t.Errorf("tool result should report success, got %q", m.Content)
			}
		}
	}
	if !sawToolResult {
		t.Error("tool result turn missing from final completion")
	}
}

func TestProcessMessage_CompletionFailureRollsBack(t *testing.T) {
	llm := &scriptedCompleter{errs: []error{fmt.Errorf("upstream 500")}}
	engine, _, _ := newTestEngine(llm)

	reply, err := engine.ProcessMessage(context.Background(), "+15550001111", "hello?", false)
	if err != nil {
		t.Fatalf("failures must degrade, not error: %v", err)
	}
	if reply != FallbackReply {
		t.Errorf("expected fallback reply, got %q", reply)
	}

	// History keeps the customer's message so a retry has context, and
	// nothing after it.
	session := engine.sessions.GetOrCreate("+15550001111", "sms")
	turns := session.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected system + user turns, got %d", len(turns))
	}
	if turns[1].Role != "user" || turns[1].Content != "hello?" {
		t.Errorf("user turn not preserved: %+v", turns[1])
	}
}

func TestProcessMessage_MediaAnnotated(t *testing.T) {
	llm := &scriptedCompleter{responses: []*LLMResponse{
		{Kind: ReplyText, Content: "Thanks for the photo!"},
	}}
	engine, _, _ := newTestEngine(llm)

	if _, err := engine.ProcessMessage(context.Background(), "+15550001111", "here's the leak", true); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	var userTurn ChatMessage
	for _, m := range llm.lastMessages {
		if m.Role == "user" {
			userTurn = m
		}
	}
	if !strings.Contains(userTurn.Content, "photo") {
		t.Errorf("media annotation missing: %q", userTurn.Content)
	}
}

func TestProcessMessage_KeywordEscalation(t *testing.T) {
	llm := &scriptedCompleter{responses: []*LLMResponse{
		{Kind: ReplyText, Content: "That's a big project — let me get some details."},
	}}
	engine, rs, _ := newTestEngine(llm)

	if _, err := engine.ProcessMessage(context.Background(), "+15550001111", "we want a full remodel of the master bath", false); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(rs.escalations) != 1 {
		t.Fatalf("expected keyword escalation, got %d events", len(rs.escalations))
	}
	if rs.escalations[0].Reason != ReasonFullRemodel {
		t.Errorf("wrong reason: %q", rs.escalations[0].Reason)
	}
	if rs.escalations[0].CustomerPhone != "+15550001111" {
		t.Errorf("escalation should carry the caller phone, got %q", rs.escalations[0].CustomerPhone)
	}
}

func TestProcessMessage_NoDoubleEscalation(t *testing.T) {
	// The model escalates via tool AND the text matches a keyword; only
	// one event may be recorded.
	llm := &scriptedCompleter{responses: []*LLMResponse{
		{
			Kind: ReplyToolCalls,
			ToolCalls: []ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: FunctionCall{
					Name:      "escalate_conversation",
					Arguments: `{"reason":"full_remodel","details":"full remodel request"}`,
				},
			}},
		},
		{Kind: ReplyText, Content: "The owner will reach out shortly."},
	}}
	engine, rs, _ := newTestEngine(llm)

	if _, err := engine.ProcessMessage(context.Background(), "+15550001111", "we want a full remodel", false); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(rs.escalations) != 1 {
		t.Fatalf("expected exactly 1 escalation, got %d", len(rs.escalations))
	}
}
