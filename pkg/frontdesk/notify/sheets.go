// sheets.go appends captured leads to an external Google Sheet via the
// values:append REST endpoint.
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

const sheetsAPIBase = "https://sheets.googleapis.com/v4/spreadsheets"

// SheetsClient mirrors leads into a spreadsheet the owner already uses.
type SheetsClient struct {
	spreadsheetID string
	accessToken   string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewSheetsClient creates a Sheets client. Empty configuration degrades
// appends to log lines.
func NewSheetsClient(spreadsheetID, accessToken string, logger *slog.Logger) *SheetsClient {
	return &SheetsClient{
		spreadsheetID: spreadsheetID,
		accessToken:   accessToken,
		baseURL:       sheetsAPIBase,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		logger:        logger.With("component", "sheets"),
	}
}

// Configured reports whether a spreadsheet and token are present.
func (c *SheetsClient) Configured() bool {
	return c.spreadsheetID != "" && c.accessToken != ""
}

// AppendRow appends one row of cell values to the Leads sheet.
func (c *SheetsClient) AppendRow(ctx context.Context, values []any) Outcome {
	if !c.Configured() {
		c.logger.Info("sheets not configured; row logged only", "cells", len(values))
		return skipped("sheets not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"values": [][]any{values},
	})
	if err != nil {
		return failed(fmt.Errorf("marshaling row: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s/values/Leads!A1:append?valueInputOption=USER_ENTERED",
		c.baseURL, c.spreadsheetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return failed(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("sheet append failed", "error", err)
		return failed(fmt.Errorf("sheets request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		err := fmt.Errorf("sheets returned %d: %s", resp.StatusCode, string(body))
		c.logger.Error("sheet append failed", "error", err)
		return failed(err)
	}

	c.logger.Info("lead row appended to sheet")
	return ok()
}
