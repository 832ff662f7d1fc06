package gateway

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/agents"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/voice"
)

const version = "1.0.0"

// twimlResponse is the telephony provider's instruction document. Exactly
// one of Connect or Message is set per response.
type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
	Message string        `xml:"Message,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// errorResponse is the consistent error format.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	_ = enc.Encode(errorResponse{Error: struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}{Message: msg, Code: code}})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func (g *Gateway) writeTwiML(w http.ResponseWriter, resp twimlResponse) {
	w.Header().Set("Content-Type", "text/xml")
	body, err := xml.Marshal(resp)
	if err != nil {
		g.logger.Error("twiml marshal failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}

// handleHealth implements GET /health
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	g.writeJSON(w, 200, map[string]any{
		"status":  "ok",
		"version": version,
		"uptime":  time.Since(g.startedAt).Round(time.Second).String(),
	})
}

// handleVoiceIncoming implements POST /voice/incoming: answers an inbound
// call by pointing the provider at the media-stream websocket. The caller
// number rides along as a stream parameter so the bridge can attribute
// tool calls.
func (g *Gateway) handleVoiceIncoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", 405)
		return
	}
	if g.cfg.Gateway.PublicHost == "" {
		g.logger.Error("voice webhook hit but gateway.public_host is not configured")
		g.writeError(w, "media stream host not configured", 503)
		return
	}
	if err := r.ParseForm(); err != nil {
		g.writeError(w, "invalid form body", 400)
		return
	}
	from := r.PostFormValue("From")
	g.logger.Info("incoming call", "from", from, "call_sid", r.PostFormValue("CallSid"))

	g.writeTwiML(w, twimlResponse{
		Connect: &twimlConnect{
			Stream: twimlStream{
				URL: "wss://" + g.cfg.Gateway.PublicHost + "/voice/stream",
				Parameters: []twimlParameter{
					{Name: "from", Value: from},
				},
			},
		},
	})
}

// handleVoiceStream implements the media-stream websocket. Each call gets
// its own realtime connection and bridge; the handler blocks until the
// call ends.
func (g *Gateway) handleVoiceStream(w http.ResponseWriter, r *http.Request) {
	telephony, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("media stream upgrade failed", "error", err)
		return
	}

	realtime, err := voice.DialRealtime(r.Context(), g.cfg)
	if err != nil {
		g.logger.Error("realtime dial failed", "error", err)
		telephony.Close()
		return
	}

	bridge := voice.NewBridge(telephony, realtime, g.exec, g.cfg, g.logger)
	bridge.Run(r.Context())
}

// handleSMSIncoming implements POST /sms/incoming: one inbound text in,
// one TwiML reply out. The engine owns the conversation; this handler
// only translates the webhook form.
func (g *Gateway) handleSMSIncoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", 405)
		return
	}
	if err := r.ParseForm(); err != nil {
		g.writeError(w, "invalid form body", 400)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		g.writeError(w, "From is required", 400)
		return
	}
	numMedia, _ := strconv.Atoi(r.PostFormValue("NumMedia"))

	// The provider retries on timeout; keep the turn bounded.
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	reply, err := g.engine.ProcessMessage(ctx, from, body, numMedia > 0)
	if err != nil {
		g.logger.Error("sms turn failed", "from", from, "error", err)
	}
	g.writeTwiML(w, twimlResponse{Message: reply})
}

// handleLeads implements GET /api/leads?status=&limit=
func (g *Gateway) handleLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	leads, err := g.store.ListLeads(r.URL.Query().Get("status"), limit)
	if err != nil {
		g.writeError(w, err.Error(), 500)
		return
	}
	views := make([]map[string]any, 0, len(leads))
	for _, l := range leads {
		views = append(views, leadView(l))
	}
	g.writeJSON(w, 200, map[string]any{"leads": views, "count": len(views)})
}

func leadView(l store.Lead) map[string]any {
	return map[string]any{
		"id":             l.ID,
		"customer_name":  l.CustomerName,
		"phone":          l.Phone,
		"job_type":       l.JobType,
		"address":        l.Address,
		"urgency":        l.Urgency,
		"preferred_date": l.PreferredDate,
		"notes":          l.Notes,
		"has_photos":     l.HasPhotos,
		"source":         l.Source,
		"status":         l.Status,
		"created_at":     l.CreatedAt,
		"updated_at":     l.UpdatedAt,
	}
}

// handleEscalations implements GET /api/escalations?limit=
func (g *Gateway) handleEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := g.store.ListEscalations(limit)
	if err != nil {
		g.writeError(w, err.Error(), 500)
		return
	}
	views := make([]map[string]any, 0, len(events))
	for _, e := range events {
		views = append(views, map[string]any{
			"id":             e.ID,
			"reason":         e.Reason,
			"details":        e.Details,
			"customer_phone": e.CustomerPhone,
			"channel":        e.Channel,
			"call_id":        e.CallID,
			"created_at":     e.CreatedAt,
		})
	}
	g.writeJSON(w, 200, map[string]any{"escalations": views, "count": len(views)})
}

// handleOpportunities implements GET /api/opportunities?limit=
func (g *Gateway) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	opps, err := g.store.ListOpportunities(g.cfg.Business.Name, limit)
	if err != nil {
		g.writeError(w, err.Error(), 500)
		return
	}
	views := make([]map[string]any, 0, len(opps))
	for _, o := range opps {
		views = append(views, map[string]any{
			"id":            o.ID,
			"business_name": o.BusinessName,
			"location":      o.Location,
			"industry":      o.Industry,
			"issues":        o.Issues,
			"contacted":     o.Contacted,
			"created_at":    o.CreatedAt,
		})
	}
	g.writeJSON(w, 200, map[string]any{"opportunities": views, "count": len(views)})
}

// handleAgentRuns implements GET /api/agents/runs?limit=
func (g *Gateway) handleAgentRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := g.store.ListRuns(limit)
	if err != nil {
		g.writeError(w, err.Error(), 500)
		return
	}
	views := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView(run))
	}
	g.writeJSON(w, 200, map[string]any{"runs": views, "count": len(views)})
}

func runView(run store.AgentRun) map[string]any {
	v := map[string]any{
		"id":         run.ID,
		"agent":      run.Agent,
		"status":     run.Status,
		"started_at": run.StartedAt,
		"result":     run.Result,
	}
	if run.EndedAt != nil {
		v["ended_at"] = *run.EndedAt
	}
	if run.Error != "" {
		v["error"] = run.Error
	}
	return v
}

// handleAgentRunNow implements POST /api/agents/run/{name}: triggers one
// agent immediately, bypassing its schedule. This is how manual-only
// agents run.
func (g *Gateway) handleAgentRunNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", 405)
		return
	}
	if g.scheduler == nil {
		g.writeError(w, "agents are disabled", 503)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/agents/run/")
	if name == "" {
		g.writeError(w, "agent name required", 400)
		return
	}
	result, err := g.scheduler.RunNow(r.Context(), name)
	if err != nil {
		var unknown *agents.UnknownAgentError
		code := 500
		if errors.As(err, &unknown) {
			code = 404
		}
		g.writeError(w, err.Error(), code)
		return
	}
	g.writeJSON(w, 200, map[string]any{"agent": name, "result": json.RawMessage(orEmptyObject(result))})
}

// handleStatus implements GET /api/status
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", 405)
		return
	}
	status := map[string]any{
		"version":         version,
		"uptime":          time.Since(g.startedAt).Round(time.Second).String(),
		"active_sessions": g.sessions.Count(),
		"business":        g.cfg.Business.Name,
		"agents_enabled":  g.scheduler != nil,
	}
	if g.scheduler != nil {
		status["agents"] = g.scheduler.AgentNames()
	}
	g.writeJSON(w, 200, status)
}

// orEmptyObject keeps /api/agents/run responses valid JSON when an agent
// returns an empty summary.
func orEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
