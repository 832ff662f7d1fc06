// email.go implements the transactional email provider client
// (Resend-compatible JSON API).
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const emailAPIEndpoint = "https://api.resend.com/emails"

// EmailClient sends transactional email. Without an API key, sends are
// logged and reported as Skipped.
type EmailClient struct {
	apiKey     string
	from       string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewEmailClient creates an email client. apiKey may be empty.
func NewEmailClient(apiKey, from string, logger *slog.Logger) *EmailClient {
	return &EmailClient{
		apiKey:     apiKey,
		from:       from,
		endpoint:   emailAPIEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With("component", "email"),
	}
}

// Configured reports whether an API key is present.
func (c *EmailClient) Configured() bool { return c.apiKey != "" }

// Send delivers one email. Degrades to a log line without credentials.
func (c *EmailClient) Send(ctx context.Context, to, subject, body string) Outcome {
	if !c.Configured() {
		c.logger.Info("email provider not configured; logged only",
			"to", to, "subject", subject)
		return skipped("email provider not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"from":    c.from,
		"to":      []string{to},
		"subject": subject,
		"text":    body,
	})
	if err != nil {
		return failed(fmt.Errorf("marshaling email: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return failed(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("email send failed", "to", to, "error", err)
		return failed(fmt.Errorf("provider request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		err := fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(respBody))
		c.logger.Error("email send failed", "to", to, "error", err)
		return failed(err)
	}

	c.logger.Info("email sent", "to", to, "subject", subject)
	return ok()
}
