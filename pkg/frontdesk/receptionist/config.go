// Package receptionist – config.go defines all configuration structures
// for the FrontDesk assistant.
package receptionist

import "time"

// Config holds all assistant configuration.
type Config struct {
	// Business describes the company the assistant answers for.
	Business BusinessConfig `yaml:"business"`

	// Model is the chat model used for SMS conversations and agents.
	Model string `yaml:"model"`

	// RealtimeModel is the model used for live voice calls.
	RealtimeModel string `yaml:"realtime_model"`

	// Voice is the synthesized voice for calls (e.g. "alloy").
	Voice string `yaml:"voice"`

	// API configures the completion-service endpoint.
	API APIConfig `yaml:"api"`

	// Instructions are the base system prompt for conversations.
	// The prompt text itself lives in config, not in code.
	Instructions string `yaml:"instructions"`

	// Twilio configures the telephony provider.
	Twilio TwilioConfig `yaml:"twilio"`

	// Email configures the transactional email provider.
	Email EmailConfig `yaml:"email"`

	// Sheets configures the external spreadsheet for lead rows.
	Sheets SheetsConfig `yaml:"sheets"`

	// Webhook configures the generic outbound lead webhook.
	Webhook WebhookConfig `yaml:"webhook"`

	// Sessions configures the conversation session cache.
	Sessions SessionsConfig `yaml:"sessions"`

	// Agents configures the background agent scheduler.
	Agents AgentsConfig `yaml:"agents"`

	// Database configures the central SQLite database.
	Database DatabaseConfig `yaml:"database"`

	// Gateway configures the HTTP gateway (webhooks + API).
	Gateway GatewayConfig `yaml:"gateway"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// BusinessConfig identifies the business and its notification targets.
type BusinessConfig struct {
	// Name is the business name used in prompts and notifications.
	Name string `yaml:"name"`

	// Trade is the line of work (e.g. "plumbing and electrical").
	Trade string `yaml:"trade"`

	// ServiceArea is the geographic area agents prospect in.
	ServiceArea string `yaml:"service_area"`

	// OwnerPhone receives escalation and new-lead SMS notifications.
	OwnerPhone string `yaml:"owner_phone"`
}

// APIConfig configures the LLM provider endpoint.
type APIConfig struct {
	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// RealtimeURL is the realtime websocket URL
	// (default: wss://api.openai.com/v1/realtime).
	RealtimeURL string `yaml:"realtime_url"`

	// APIKey is the provider API key. Prefer keyring or env over
	// storing it here in plaintext.
	APIKey string `yaml:"api_key"`
}

// TwilioConfig holds telephony provider credentials.
// All fields empty means SMS/call side effects degrade to log lines.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`

	// FromNumber is the business sending number in E.164.
	FromNumber string `yaml:"from_number"`
}

// EmailConfig holds the transactional email provider key.
type EmailConfig struct {
	APIKey string `yaml:"api_key"`

	// From is the sender address (e.g. "Apex Plumbing <quotes@apex.example>").
	From string `yaml:"from"`
}

// SheetsConfig identifies the spreadsheet that mirrors captured leads.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`

	// AccessToken is a service-account bearer token for the Sheets API.
	AccessToken string `yaml:"access_token"`
}

// WebhookConfig configures the generic outbound lead webhook.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// SessionsConfig configures the conversation session cache.
type SessionsConfig struct {
	// TTL is the idle duration after which a session is discarded.
	TTL time.Duration `yaml:"ttl"`

	// SweepInterval is how often expired sessions are evicted.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AgentsConfig configures the background agent scheduler.
type AgentsConfig struct {
	// Enabled starts the scheduler loop with `serve`.
	Enabled bool `yaml:"enabled"`

	// PauseBetween is the delay between agents within one cycle.
	PauseBetween time.Duration `yaml:"pause_between"`

	// QuotaCooldown delays an agent after a rate-limit/quota error.
	QuotaCooldown time.Duration `yaml:"quota_cooldown"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	// Address is the listen address (default ":8090").
	Address string `yaml:"address"`

	// PublicHost is the externally reachable host for webhook callbacks
	// and the media-stream websocket URL (e.g. "frontdesk.example.com").
	PublicHost string `yaml:"public_host"`

	// AuthToken protects /api/* routes when non-empty. Telephony
	// webhooks are always reachable (the provider cannot send a bearer).
	AuthToken string `yaml:"auth_token"`

	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format: "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Model:         "gpt-4o-mini",
		RealtimeModel: "gpt-4o-realtime-preview",
		Voice:         "alloy",
		API: APIConfig{
			BaseURL:     "https://api.openai.com/v1",
			RealtimeURL: "wss://api.openai.com/v1/realtime",
		},
		Sessions: SessionsConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Agents: AgentsConfig{
			Enabled:       true,
			PauseBetween:  10 * time.Second,
			QuotaCooldown: time.Hour,
		},
		Database: DatabaseConfig{
			Path: "./data/frontdesk.db",
		},
		Gateway: GatewayConfig{
			Address: ":8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
