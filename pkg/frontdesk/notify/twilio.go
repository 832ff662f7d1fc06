// twilio.go implements the telephony provider REST client (messages and
// outbound calls) over the form-encoded Twilio API.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioClient sends SMS and places calls through the Twilio REST API.
// A zero-credential client degrades every send to a log line.
type TwilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTwilioClient creates a Twilio client. Empty credentials are allowed;
// the client then reports Skipped outcomes.
func NewTwilioClient(accountSID, authToken, fromNumber string, logger *slog.Logger) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With("component", "twilio"),
	}
}

// Configured reports whether credentials and a sending number are present.
func (c *TwilioClient) Configured() bool {
	return c.accountSID != "" && c.authToken != "" && c.fromNumber != ""
}

// SendSMS sends a text message. Without credentials the message body is
// logged and the outcome is Skipped.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) Outcome {
	if !c.Configured() {
		c.logger.Info("twilio not configured; SMS logged only", "to", to, "body", body)
		return skipped("twilio not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	if err := c.post(ctx, "/Messages.json", form); err != nil {
		c.logger.Error("SMS send failed", "to", to, "error", err)
		return failed(err)
	}
	c.logger.Info("SMS sent", "to", to, "chars", len(body))
	return ok()
}

// PlaceCall starts an outbound call that fetches TwiML from twimlURL.
func (c *TwilioClient) PlaceCall(ctx context.Context, to, twimlURL string) Outcome {
	if !c.Configured() {
		c.logger.Info("twilio not configured; call logged only", "to", to, "twiml_url", twimlURL)
		return skipped("twilio not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Url", twimlURL)

	if err := c.post(ctx, "/Calls.json", form); err != nil {
		c.logger.Error("call placement failed", "to", to, "error", err)
		return failed(err)
	}
	c.logger.Info("outbound call placed", "to", to)
	return ok()
}

// post sends a form-encoded request with basic auth to an account-scoped path.
func (c *TwilioClient) post(ctx context.Context, path string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s%s", c.baseURL, c.accountSID, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
