package receptionist

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

func smsContext(phone string) context.Context {
	return ContextWithCall(context.Background(), CallInfo{Channel: "sms", CallerPhone: phone})
}

func TestCaptureLead_SideEffectFailuresDoNotFailTheTool(t *testing.T) {
	rs := &fakeRecordStore{}
	tools := NewTools(rs, &fakeMessenger{fail: true}, &fakeSheet{fail: true}, &fakeWebhook{fail: true}, "+15559990000", nil)

	out, err := tools.CaptureLead(smsContext("+15550001111"), map[string]any{
		"customer_name": "Dana",
		"job_type":      "plumbing",
		"urgency":       "emergency",
	})
	if err != nil {
		t.Fatalf("CaptureLead must succeed when only side effects fail: %v", err)
	}

	result := out.(map[string]any)
	if result["success"] != true {
		t.Error("lead persisted, success must be true")
	}
	if result["sheet_saved"] != false || result["webhook_fired"] != false || result["owner_notified"] != false {
		t.Errorf("failed side effects must be reported false: %+v", result)
	}
	if len(rs.leads) != 1 {
		t.Fatalf("lead not persisted")
	}
}

func TestCaptureLead_StoreFailureFailsTheTool(t *testing.T) {
	rs := &fakeRecordStore{leadErr: fmt.Errorf("disk full")}
	tools := NewTools(rs, &fakeMessenger{}, &fakeSheet{}, &fakeWebhook{}, "", nil)

	if _, err := tools.CaptureLead(smsContext("+15550001111"), map[string]any{"job_type": "plumbing"}); err == nil {
		t.Fatal("lead persistence failure must fail the tool")
	}
}

func TestCaptureLead_NormalizesSourceFromChannel(t *testing.T) {
	cases := []struct {
		channel string
		want    string
	}{
		{"voice", store.SourcePhoneCall},
		{"sms", store.SourceSMS},
		{"", store.SourceManual},
	}
	for _, tc := range cases {
		t.Run("channel="+tc.channel, func(t *testing.T) {
			rs := &fakeRecordStore{}
			tools := NewTools(rs, &fakeMessenger{}, &fakeSheet{}, &fakeWebhook{}, "", nil)
			ctx := ContextWithCall(context.Background(), CallInfo{Channel: tc.channel, CallerPhone: "+15550001111"})

			if _, err := tools.CaptureLead(ctx, map[string]any{"job_type": "plumbing"}); err != nil {
				t.Fatalf("CaptureLead: %v", err)
			}
			if got := rs.leads[0].Source; got != tc.want {
				t.Errorf("source = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCaptureLead_ExplicitSourceWins(t *testing.T) {
	rs := &fakeRecordStore{}
	tools := NewTools(rs, &fakeMessenger{}, &fakeSheet{}, &fakeWebhook{}, "", nil)

	if _, err := tools.CaptureLead(smsContext("+15550001111"), map[string]any{
		"job_type": "plumbing",
		"source":   store.SourceYelp,
	}); err != nil {
		t.Fatalf("CaptureLead: %v", err)
	}
	if got := rs.leads[0].Source; got != store.SourceYelp {
		t.Errorf("explicit source must win, got %q", got)
	}
}

func TestEscalate_PersistsEventAndNotifiesOwner(t *testing.T) {
	rs := &fakeRecordStore{}
	msgr := &fakeMessenger{}
	tools := NewTools(rs, msgr, &fakeSheet{}, &fakeWebhook{}, "+15559990000", nil)

	out, err := tools.Escalate(smsContext("+15550001111"), map[string]any{
		"reason":  "angry_client",
		"details": "customer unhappy about a missed appointment",
	})
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	result := out.(map[string]any)
	if result["escalated"] != true {
		t.Error("escalated must be true")
	}
	if result["reason_label"] != "Upset customer" {
		t.Errorf("wrong label: %v", result["reason_label"])
	}
	if len(rs.escalations) != 1 {
		t.Fatalf("event not persisted")
	}
	if rs.escalations[0].CustomerPhone != "+15550001111" {
		t.Errorf("caller phone not filled from context: %q", rs.escalations[0].CustomerPhone)
	}
	if len(msgr.sent) != 1 || !strings.Contains(msgr.sent[0], "Upset customer") {
		t.Errorf("owner notification missing or mislabeled: %v", msgr.sent)
	}
}

func TestEscalationLabel_Idempotent(t *testing.T) {
	for reason, want := range escalationLabels {
		for i := 0; i < 3; i++ {
			if got := EscalationLabel(reason); got != want {
				t.Errorf("EscalationLabel(%q) = %q on pass %d, want %q", reason, got, i, want)
			}
		}
	}
	if got := EscalationLabel("not_a_reason"); got != "Needs human attention" {
		t.Errorf("unknown reasons must use the fallback label, got %q", got)
	}
}

func TestDetectEscalation(t *testing.T) {
	tests := []struct {
		text   string
		reason string
		found  bool
	}{
		{"we're thinking about a FULL REMODEL of the kitchen", ReasonFullRemodel, true},
		{"can I speak to the owner please", ReasonOwnerRequest, true},
		{"need my electrical panel upgraded to 200 amp", ReasonComplexElectrical, true},
		{"I think we have a slab leak", ReasonComplexPlumbing, true},
		{"my faucet drips a little", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		reason, found := DetectEscalation(tc.text)
		if found != tc.found || reason != tc.reason {
			t.Errorf("DetectEscalation(%q) = (%q, %v), want (%q, %v)",
				tc.text, reason, found, tc.reason, tc.found)
		}
	}
}

func TestExecute_MalformedArgumentsLabeledError(t *testing.T) {
	exec := NewToolExecutor(nil)
	exec.Register(captureLeadDef, func(_ context.Context, _ map[string]any) (any, error) {
		t.Fatal("handler must not run on malformed arguments")
		return nil, nil
	})

	result := exec.Execute(context.Background(), ToolCall{
		ID:       "call_1",
		Function: FunctionCall{Name: "capture_lead", Arguments: `{"job_type": `},
	})
	if result.Err == nil {
		t.Fatal("expected an error result")
	}
	if !strings.Contains(result.Content, "malformed") {
		t.Errorf("content should label the failure for the model: %q", result.Content)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	exec := NewToolExecutor(nil)
	result := exec.Execute(context.Background(), ToolCall{
		ID:       "call_1",
		Function: FunctionCall{Name: "book_flight", Arguments: `{}`},
	})
	if result.Err == nil {
		t.Fatal("expected an error result")
	}
	if !strings.Contains(result.Content, "unknown tool") {
		t.Errorf("content should name the problem: %q", result.Content)
	}
}

func TestExecute_HandlerErrorBecomesLabeledContent(t *testing.T) {
	exec := NewToolExecutor(nil)
	exec.Register(escalateDef, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, fmt.Errorf("database locked")
	})

	result := exec.Execute(context.Background(), ToolCall{
		ID:       "call_1",
		Function: FunctionCall{Name: "escalate_conversation", Arguments: `{"reason":"other"}`},
	})
	if result.Err == nil {
		t.Fatal("expected an error result")
	}
	if !strings.Contains(result.Content, "database locked") {
		t.Errorf("handler error should surface in content: %q", result.Content)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		var got []map[string]string
		in := "```json\n[{\"business_name\": \"Joe's Diner\"}]\n```"
		if err := DecodeJSON(in, &got); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if len(got) != 1 || got[0]["business_name"] != "Joe's Diner" {
			t.Errorf("unexpected decode: %+v", got)
		}
	})

	t.Run("surrounded by prose", func(t *testing.T) {
		var got map[string]string
		in := `Sure! Here is the draft: {"subject": "Hello"} Let me know.`
		if err := DecodeJSON(in, &got); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if got["subject"] != "Hello" {
			t.Errorf("unexpected decode: %+v", got)
		}
	})

	t.Run("no payload", func(t *testing.T) {
		var got map[string]string
		if err := DecodeJSON("I could not find any businesses.", &got); err == nil {
			t.Error("expected an error for prose-only output")
		}
	})
}
