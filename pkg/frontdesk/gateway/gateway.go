// Package gateway provides the HTTP surface of FrontDesk: telephony
// webhooks (voice, media stream, SMS) and a read API for leads,
// escalations and agent runs.
package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/agents"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// Gateway is the HTTP server for webhooks and the API.
type Gateway struct {
	cfg       *receptionist.Config
	engine    *receptionist.Engine
	exec      *receptionist.ToolExecutor
	sessions  *receptionist.SessionStore
	store     *store.Store
	scheduler *agents.Scheduler
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a Gateway. scheduler may be nil when agents are disabled.
func New(cfg *receptionist.Config, engine *receptionist.Engine, exec *receptionist.ToolExecutor,
	sessions *receptionist.SessionStore, st *store.Store, scheduler *agents.Scheduler, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Gateway.Address == "" {
		cfg.Gateway.Address = ":8090"
	}
	return &Gateway{
		cfg:       cfg,
		engine:    engine,
		exec:      exec,
		sessions:  sessions,
		store:     st,
		scheduler: scheduler,
		upgrader: websocket.Upgrader{
			// The media stream comes from the telephony provider, not a
			// browser; origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "gateway"),
	}
}

// Start starts the HTTP server.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()
	mux := http.NewServeMux()

	// Health (always public)
	mux.HandleFunc("/health", g.handleHealth)

	// Telephony webhooks
	mux.HandleFunc("/voice/incoming", g.handleVoiceIncoming)
	mux.HandleFunc("/voice/stream", g.handleVoiceStream)
	mux.HandleFunc("/sms/incoming", g.handleSMSIncoming)

	// API routes
	mux.HandleFunc("/api/leads", g.handleLeads)
	mux.HandleFunc("/api/escalations", g.handleEscalations)
	mux.HandleFunc("/api/opportunities", g.handleOpportunities)
	mux.HandleFunc("/api/agents/runs", g.handleAgentRuns)
	mux.HandleFunc("/api/agents/run/", g.handleAgentRunNow)
	mux.HandleFunc("/api/status", g.handleStatus)

	handler := g.securityHeadersMiddleware(g.corsMiddleware(g.authMiddleware(mux)))
	g.server = &http.Server{
		Addr:    g.cfg.Gateway.Address,
		Handler: handler,
	}

	// Warn when the gateway has no auth token and is bound to a non-loopback address.
	if g.cfg.Gateway.AuthToken == "" {
		host, _, _ := net.SplitHostPort(g.cfg.Gateway.Address)
		if host == "" {
			host = "0.0.0.0"
		}
		ip := net.ParseIP(host)
		isLoopback := ip != nil && ip.IsLoopback()
		isLocalName := host == "localhost"
		if !isLoopback && !isLocalName {
			g.logger.Warn("SECURITY: gateway has no auth token and is bound to a non-loopback address — anyone on the network can access the API",
				"address", g.cfg.Gateway.Address)
		}
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", g.cfg.Gateway.Address)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping...")
	return g.server.Shutdown(ctx)
}

// securityHeadersMiddleware adds standard security headers to all responses.
func (g *Gateway) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}
