// coldcall.go implements the cold-caller agent. It is manual-only: the
// scheduler never auto-runs it, operators trigger it via the CLI or API.
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

// ColdCaller places first-touch calls to pending call-campaign contacts.
type ColdCaller struct {
	storage  Storage
	llm      TextCompleter
	caller   CallPlacer
	tenant   string
	trade    string
	twimlURL string
	logger   *slog.Logger
}

// NewColdCaller creates the cold-caller agent. twimlURL is the public
// voice webhook the outbound call fetches its instructions from.
func NewColdCaller(storage Storage, llm TextCompleter, caller CallPlacer, cfg *receptionist.Config, logger *slog.Logger) *ColdCaller {
	twimlURL := ""
	if cfg.Gateway.PublicHost != "" {
		twimlURL = "https://" + cfg.Gateway.PublicHost + "/voice/incoming"
	}
	return &ColdCaller{
		storage:  storage,
		llm:      llm,
		caller:   caller,
		tenant:   cfg.Business.Name,
		trade:    cfg.Business.Trade,
		twimlURL: twimlURL,
		logger:   logger.With("agent", NameColdCaller),
	}
}

func (a *ColdCaller) Name() string { return NameColdCaller }

// Interval is zero: cold calls are never auto-scheduled.
func (a *ColdCaller) Interval() time.Duration { return 0 }

type coldCallSummary struct {
	Enrolled   int `json:"enrolled"`
	Candidates int `json:"candidates"`
	Placed     int `json:"placed"`
	Failed     int `json:"failed"`
}

// Run enrolls prospects with a phone number that the text and email
// channels have not taken, then drafts a talking-points script per
// contact and places the call. Without telephony credentials the script
// is logged and the contact is still marked touched.
func (a *ColdCaller) Run(ctx context.Context) (string, error) {
	summary := coldCallSummary{}
	summary.Enrolled = enrollProspects(a.storage, a.tenant, "prospect calls", "call",
		func(o store.Opportunity) bool { return o.Phone != "" }, 5, a.logger)

	contacts, err := a.storage.PendingContacts("call", 5)
	if err != nil {
		return "", fmt.Errorf("pending contacts: %w", err)
	}

	summary.Candidates = len(contacts)
	for _, c := range contacts {
		if c.Phone == "" {
			continue
		}

		prompt := fmt.Sprintf(
			"Write 3 short talking points for a friendly intro call from %s (%s) to %s. "+
				"Plain text, one point per line.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(c.Name))
		script, err := a.llm.Complete(ctx, "You prepare cold-call talking points for a trade business.", prompt)
		if err != nil {
			return a.summaryJSON(summary), fmt.Errorf("call script for contact %d: %w", c.ID, err)
		}
		a.logger.Info("call script prepared", "contact_id", c.ID, "script", strings.TrimSpace(script))

		outcome := a.caller.PlaceCall(ctx, c.Phone, a.twimlURL)
		if outcome.Err != nil {
			a.logger.Error("call placement failed", "contact_id", c.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		if err := a.storage.MarkContacted(c.ID, "cold call placed"); err != nil {
			a.logger.Error("contact update failed", "contact_id", c.ID, "error", err)
			continue
		}
		summary.Placed++
	}

	a.logger.Info("cold-call pass complete",
		"enrolled", summary.Enrolled, "candidates", summary.Candidates,
		"placed", summary.Placed, "failed", summary.Failed)
	return a.summaryJSON(summary), nil
}

func (a *ColdCaller) summaryJSON(s coldCallSummary) string {
	out, _ := json.Marshal(s)
	return string(out)
}
