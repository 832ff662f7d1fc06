package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// LeadNurture follows up with leads that went quiet. Idle leads are
// bucketed by how long they have been silent (day 1, 3 or 7) and get a
// tone-matched SMS. Touching the lead resets its idle window, so a lead
// is never messaged twice in one day.
type LeadNurture struct {
	storage Storage
	llm     TextCompleter
	sms     SMSSender
	tenant  string
	trade   string
	logger  *slog.Logger
	now     func() time.Time
}

func NewLeadNurture(storage Storage, llm TextCompleter, sms SMSSender, cfg *receptionist.Config, logger *slog.Logger) *LeadNurture {
	return &LeadNurture{
		storage: storage,
		llm:     llm,
		sms:     sms,
		tenant:  cfg.Business.Name,
		trade:   cfg.Business.Trade,
		logger:  logger.With("agent", NameLeadNurture),
		now:     time.Now,
	}
}

func (a *LeadNurture) Name() string { return NameLeadNurture }

func (a *LeadNurture) Interval() time.Duration { return 24 * time.Hour }

type nurtureSummary struct {
	Idle   int `json:"idle"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// nurtureBucket maps days of silence to the follow-up tone. The day-7
// message is the last one; older leads are left alone until they reply.
func nurtureBucket(idle time.Duration) (string, bool) {
	days := int(idle.Hours() / 24)
	switch {
	case days >= 7:
		return "Day 7: a final gentle check-in, make clear the door stays open.", true
	case days >= 3:
		return "Day 3: offer something concrete, like a free estimate or a time window this week.", true
	case days >= 1:
		return "Day 1: a light nudge asking if they are still interested.", true
	default:
		return "", false
	}
}

func (a *LeadNurture) Run(ctx context.Context) (string, error) {
	now := a.now()
	leads, err := a.storage.LeadsIdleSince(now.Add(-24 * time.Hour))
	if err != nil {
		return "", fmt.Errorf("idle leads: %w", err)
	}

	summary := nurtureSummary{Idle: len(leads)}
	for _, l := range leads {
		if l.Phone == "" {
			continue
		}
		tone, ok := nurtureBucket(now.Sub(l.UpdatedAt))
		if !ok {
			continue
		}

		prompt := fmt.Sprintf(
			"Write one follow-up SMS (under 300 characters) from %s (%s) to %s about their %s job. %s "+
				"Reply with the message text only, no quotes.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(l.CustomerName), orJob(l.JobType), tone)
		body, err := a.llm.Complete(ctx, "You write short, warm follow-up texts for a trade business.", prompt)
		if err != nil {
			return a.summaryJSON(summary), fmt.Errorf("follow-up for lead %d: %w", l.ID, err)
		}
		body = strings.Trim(strings.TrimSpace(body), `"`)

		outcome := a.sms.SendSMS(ctx, l.Phone, body)
		if outcome.Status == notify.StatusFailed {
			a.logger.Error("follow-up send failed", "lead_id", l.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		// Touching the lead restarts the idle window at the nudge, so the
		// lead drops out of the idle set for another full day. The tone is
		// recomputed from the new silence span: a lead that keeps ignoring
		// daily passes gets the day-1 nudge again, and the later tones only
		// fire when passes were missed long enough for the silence to grow.
		if err := a.storage.TouchLead(l.ID); err != nil {
			a.logger.Error("lead touch failed", "lead_id", l.ID, "error", err)
		}
		if l.Status == store.LeadStatusNew {
			if err := a.storage.UpdateLeadStatus(l.ID, store.LeadStatusContacted); err != nil {
				a.logger.Error("lead status update failed", "lead_id", l.ID, "error", err)
			}
		}
		summary.Sent++
	}

	a.logger.Info("nurture pass complete",
		"idle", summary.Idle, "sent", summary.Sent, "failed", summary.Failed)
	return a.summaryJSON(summary), nil
}

func (a *LeadNurture) summaryJSON(s nurtureSummary) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func orJob(s string) string {
	if s == "" {
		return "service"
	}
	return s
}
