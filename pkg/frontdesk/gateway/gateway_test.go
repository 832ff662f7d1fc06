package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/agents"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// stubCompleter answers every turn with a fixed reply (or error).
type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) CompleteWithTools(ctx context.Context, messages []receptionist.ChatMessage, tools []receptionist.ToolDefinition) (*receptionist.LLMResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &receptionist.LLMResponse{Kind: receptionist.ReplyText, Content: s.reply}, nil
}

func newTestGateway(t *testing.T, llm receptionist.Completer) *Gateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := receptionist.DefaultConfig()
	cfg.Business.Name = "Apex Plumbing"
	cfg.Gateway.PublicHost = "fd.example.com"

	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "frontdesk.db")})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Unconfigured side-effect clients degrade to skipped outcomes.
	twilio := notify.NewTwilioClient("", "", "", logger)
	sheets := notify.NewSheetsClient("", "", logger)
	webhook := notify.NewWebhookClient("", logger)

	exec := receptionist.NewToolExecutor(logger)
	tools := receptionist.NewTools(st, twilio, sheets, webhook, "", logger)
	tools.RegisterAll(exec)

	sessions := receptionist.NewSessionStore(30*time.Minute, cfg.Instructions, logger)
	engine := receptionist.NewEngine(sessions, llm, exec, tools, logger)

	g := New(cfg, engine, exec, sessions, st, nil, logger)
	g.startedAt = time.Now()
	return g
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestVoiceIncomingReturnsStreamTwiML(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	rec := postForm(g.handleVoiceIncoming, "/voice/incoming", url.Values{
		"From":    {"+15551234567"},
		"CallSid": {"CA123"},
	})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("content type = %q, want text/xml", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<Connect>",
		`url="wss://fd.example.com/voice/stream"`,
		`name="from"`,
		`value="+15551234567"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("twiml missing %q:\n%s", want, body)
		}
	}
}

func TestVoiceIncomingRequiresPublicHost(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})
	g.cfg.Gateway.PublicHost = ""

	rec := postForm(g.handleVoiceIncoming, "/voice/incoming", url.Values{"From": {"+15551234567"}})
	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503 when no public host is configured", rec.Code)
	}
}

func TestVoiceIncomingRejectsGet(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/voice/incoming", nil)
	rec := httptest.NewRecorder()
	g.handleVoiceIncoming(rec, req)
	if rec.Code != 405 {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestSMSIncomingRepliesWithMessageTwiML(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "We can help with that."})

	rec := postForm(g.handleSMSIncoming, "/sms/incoming", url.Values{
		"From": {"+15551234567"},
		"Body": {"My water heater is leaking"},
	})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Message>We can help with that.</Message>") {
		t.Fatalf("twiml = %s", body)
	}
	if got := g.sessions.Count(); got != 1 {
		t.Fatalf("sessions = %d, want 1 after first text", got)
	}
}

func TestSMSIncomingRequiresFrom(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	rec := postForm(g.handleSMSIncoming, "/sms/incoming", url.Values{"Body": {"hello"}})
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSMSIncomingStillRepliesWhenEngineFails(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{err: io.ErrUnexpectedEOF})

	rec := postForm(g.handleSMSIncoming, "/sms/incoming", url.Values{
		"From": {"+15551234567"},
		"Body": {"hello"},
	})

	// The provider must always get TwiML back; the engine degrades to its
	// fallback reply rather than a 5xx.
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Sorry, we") {
		t.Fatalf("expected fallback reply, got: %s", rec.Body.String())
	}
}

func TestLeadsEndpoint(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	lead := &store.Lead{CustomerName: "Dana", Phone: "+15550001111", Source: store.SourceSMS}
	if err := g.store.CreateLead(lead); err != nil {
		t.Fatalf("CreateLead: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	rec := httptest.NewRecorder()
	g.handleLeads(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Leads []struct {
			Phone  string `json:"phone"`
			Status string `json:"status"`
		} `json:"leads"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Leads) != 1 {
		t.Fatalf("count = %d, leads = %d, want 1", resp.Count, len(resp.Leads))
	}
	if resp.Leads[0].Phone != "+15550001111" || resp.Leads[0].Status != store.LeadStatusNew {
		t.Fatalf("lead view = %+v", resp.Leads[0])
	}
}

func TestAgentRunNowWithoutScheduler(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	req := httptest.NewRequest(http.MethodPost, "/api/agents/run/market-scanner", nil)
	rec := httptest.NewRecorder()
	g.handleAgentRunNow(rec, req)
	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503 when agents are disabled", rec.Code)
	}
}

func TestAgentRunNowUnknownAgent(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g.scheduler = agents.NewScheduler(nil, g.store, time.Second, time.Hour, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/agents/run/no-such-agent", nil)
	rec := httptest.NewRecorder()
	g.handleAgentRunNow(rec, req)
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404 for unknown agent", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	g.handleStatus(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["business"] != "Apex Plumbing" {
		t.Fatalf("business = %v", resp["business"])
	}
	if resp["agents_enabled"] != false {
		t.Fatalf("agents_enabled = %v, want false", resp["agents_enabled"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})
	g.cfg.Gateway.AuthToken = "secret-token"

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	protected := g.authMiddleware(next)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/health", "", 200},
		{"voice webhook is public", "/voice/incoming", "", 200},
		{"sms webhook is public", "/sms/incoming", "", 200},
		{"api without header", "/api/leads", "", 401},
		{"api with malformed header", "/api/leads", "Token secret-token", 401},
		{"api with wrong token", "/api/leads", "Bearer wrong", 401},
		{"api with correct token", "/api/leads", "Bearer secret-token", 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabledWithoutToken(t *testing.T) {
	g := newTestGateway(t, &stubCompleter{reply: "hi"})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	protected := g.authMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 when no token is configured", rec.Code)
	}
}

func TestCompareTokens(t *testing.T) {
	if !compareTokens("abc", "abc") {
		t.Fatal("equal tokens should match")
	}
	if compareTokens("abc", "abd") || compareTokens("abc", "abcd") {
		t.Fatal("different tokens should not match")
	}
}
