// marketscan.go implements the market-scanner agent: asks the completion
// service for prospective local businesses and records the new ones as
// opportunities.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// MarketScanner finds prospective customers in the service area.
type MarketScanner struct {
	storage Storage
	llm     TextCompleter
	tenant  string
	trade   string
	area    string
	logger  *slog.Logger
}

// NewMarketScanner creates the market-scanner agent.
func NewMarketScanner(storage Storage, llm TextCompleter, cfg *receptionist.Config, logger *slog.Logger) *MarketScanner {
	return &MarketScanner{
		storage: storage,
		llm:     llm,
		tenant:  cfg.Business.Name,
		trade:   cfg.Business.Trade,
		area:    cfg.Business.ServiceArea,
		logger:  logger.With("agent", NameMarketScanner),
	}
}

func (a *MarketScanner) Name() string            { return NameMarketScanner }
func (a *MarketScanner) Interval() time.Duration { return 6 * time.Hour }

// scanResult is the JSON shape requested from the model.
type scanResult struct {
	BusinessName string `json:"business_name"`
	Location     string `json:"location"`
	Industry     string `json:"industry"`
	Issues       string `json:"issues"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

// scanSummary is the serialized run result.
type scanSummary struct {
	Proposed          int `json:"proposed"`
	Added             int `json:"added"`
	DuplicatesSkipped int `json:"duplicatesSkipped"`
}

// Run asks for prospects, dedupes against stored opportunities by
// business name and inserts the rest.
func (a *MarketScanner) Run(ctx context.Context) (string, error) {
	prompt := fmt.Sprintf(
		"List 5 small businesses in %s that likely need %s services soon "+
			"(aging facilities, expansions, visible maintenance issues). "+
			"Respond with a JSON array of objects with keys business_name, location, "+
			"industry, issues, phone, email. Use empty strings for unknown contact details.",
		orAny(a.area), orTrade(a.trade))

	content, err := a.llm.Complete(ctx, "You research local commercial prospects for a trade business.", prompt)
	if err != nil {
		return "", fmt.Errorf("prospect generation: %w", err)
	}

	var prospects []scanResult
	if err := receptionist.DecodeJSON(content, &prospects); err != nil {
		return "", fmt.Errorf("prospect list: %w", err)
	}

	summary := scanSummary{Proposed: len(prospects)}
	for _, p := range prospects {
		name := strings.TrimSpace(p.BusinessName)
		if name == "" {
			continue
		}
		created, err := a.storage.CreateOpportunity(&store.Opportunity{
			Tenant:       a.tenant,
			BusinessName: name,
			Location:     p.Location,
			Industry:     p.Industry,
			Issues:       p.Issues,
			Phone:        strings.TrimSpace(p.Phone),
			Email:        strings.TrimSpace(p.Email),
		})
		if err != nil {
			a.logger.Error("opportunity insert failed", "business", name, "error", err)
			continue
		}
		if !created {
			summary.DuplicatesSkipped++
			a.logger.Debug("duplicate opportunity skipped", "business", name)
			continue
		}
		summary.Added++
	}

	a.logger.Info("market scan complete",
		"proposed", summary.Proposed, "added", summary.Added,
		"duplicates_skipped", summary.DuplicatesSkipped)

	out, _ := json.Marshal(summary)
	return string(out), nil
}

func orAny(s string) string {
	if s == "" {
		return "the local area"
	}
	return s
}

func orTrade(s string) string {
	if s == "" {
		return "home repair"
	}
	return s
}
