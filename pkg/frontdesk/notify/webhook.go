// webhook.go fires the generic outbound lead webhook (JSON POST).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookClient posts lead payloads to a configured URL.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookClient creates a webhook client. An empty URL degrades fires
// to log lines; an invalid or private-address URL is rejected up front.
func NewWebhookClient(webhookURL string, logger *slog.Logger) *WebhookClient {
	c := &WebhookClient{
		url:        webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "webhook"),
	}
	if webhookURL != "" {
		if err := validateWebhookURL(webhookURL); err != nil {
			c.logger.Warn("webhook URL rejected, webhook disabled", "error", err)
			c.url = ""
		}
	}
	return c
}

// Configured reports whether a webhook URL is set.
func (c *WebhookClient) Configured() bool { return c.url != "" }

// Fire posts the payload as JSON.
func (c *WebhookClient) Fire(ctx context.Context, payload any) Outcome {
	if !c.Configured() {
		c.logger.Info("webhook not configured; payload logged only")
		return skipped("webhook not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failed(fmt.Errorf("marshaling payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("webhook fire failed", "error", err)
		return failed(fmt.Errorf("webhook request failed: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("webhook returned %d", resp.StatusCode)
		c.logger.Error("webhook fire failed", "error", err)
		return failed(err)
	}

	c.logger.Info("webhook fired", "status", resp.StatusCode)
	return ok()
}

// validateWebhookURL rejects URLs that target private or loopback
// addresses to prevent Server-Side Request Forgery via outgoing webhooks.
func validateWebhookURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("webhook URL must use http or https scheme")
	}
	hostname := strings.ToLower(parsed.Hostname())
	ip := net.ParseIP(hostname)
	if ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("webhook URL targets a private or loopback address: %s", hostname)
		}
	} else {
		for _, blocked := range []string{"localhost", "localhost.localdomain", "metadata.google.internal"} {
			if hostname == blocked {
				return fmt.Errorf("webhook URL targets a reserved hostname: %s", hostname)
			}
		}
	}
	return nil
}
