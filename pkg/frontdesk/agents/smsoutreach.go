// smsoutreach.go implements the sms-outreach agent: enrolls scanned
// prospects reachable only by phone, drafts and sends a first-touch
// text to each pending contact, and follows up once when a first touch
// goes unanswered.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// SMSOutreach works through pending SMS campaign contacts.
type SMSOutreach struct {
	storage Storage
	llm     TextCompleter
	sms     SMSSender
	tenant  string
	trade   string
	logger  *slog.Logger
	now     func() time.Time
}

// NewSMSOutreach creates the sms-outreach agent.
func NewSMSOutreach(storage Storage, llm TextCompleter, sms SMSSender, cfg *receptionist.Config, logger *slog.Logger) *SMSOutreach {
	return &SMSOutreach{
		storage: storage,
		llm:     llm,
		sms:     sms,
		tenant:  cfg.Business.Name,
		trade:   cfg.Business.Trade,
		logger:  logger.With("agent", NameSMSOutreach),
		now:     time.Now,
	}
}

func (a *SMSOutreach) Name() string            { return NameSMSOutreach }
func (a *SMSOutreach) Interval() time.Duration { return 30 * time.Minute }

// Run enrolls phone-only prospects, drafts and sends one text per
// pending contact, then follows up with contacts whose first text went
// unanswered. Sends degrade to log lines without credentials but still
// count as a touch. Prospects with an email address are left to the
// email channel.
func (a *SMSOutreach) Run(ctx context.Context) (string, error) {
	summary := outreachSummary{}
	summary.Enrolled = enrollProspects(a.storage, a.tenant, "prospect sms", "sms",
		func(o store.Opportunity) bool { return o.Phone != "" && o.Email == "" }, 10, a.logger)

	contacts, err := a.storage.PendingContacts("sms", 10)
	if err != nil {
		return "", fmt.Errorf("pending contacts: %w", err)
	}

	summary.Candidates = len(contacts)
	for _, c := range contacts {
		if c.Phone == "" {
			continue
		}

		prompt := fmt.Sprintf(
			"Write one friendly SMS (under 300 characters, no links) from %s (%s) to %s "+
				"offering a free estimate. Reply with just the message text.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(c.Name))

		body, err := a.llm.Complete(ctx, "You write short outreach texts for a trade business.", prompt)
		if err != nil {
			return summaryJSON(summary), fmt.Errorf("sms draft for contact %d: %w", c.ID, err)
		}
		body = strings.TrimSpace(strings.Trim(body, `"`))
		if body == "" {
			summary.Failed++
			continue
		}

		outcome := a.sms.SendSMS(ctx, c.Phone, body)
		if outcome.Err != nil {
			a.logger.Error("sms send failed", "contact_id", c.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		if err := a.storage.MarkContacted(c.ID, body); err != nil {
			a.logger.Error("contact update failed", "contact_id", c.ID, "error", err)
			continue
		}
		summary.Sent++
	}

	// One follow-up text per contact whose first touch went unanswered.
	stale, err := a.storage.SecondTouchContacts("sms", a.now().Add(-followUpAfter), 10)
	if err != nil {
		return summaryJSON(summary), fmt.Errorf("follow-up contacts: %w", err)
	}
	for _, c := range stale {
		if c.Phone == "" {
			continue
		}

		prompt := fmt.Sprintf(
			"Write one friendly follow-up SMS (under 300 characters, no links) from %s (%s) to %s, "+
				"who has not replied to an earlier text. One gentle reminder, no pressure. "+
				"Reply with just the message text.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(c.Name))

		body, err := a.llm.Complete(ctx, "You write short outreach texts for a trade business.", prompt)
		if err != nil {
			return summaryJSON(summary), fmt.Errorf("follow-up draft for contact %d: %w", c.ID, err)
		}
		body = strings.TrimSpace(strings.Trim(body, `"`))
		if body == "" {
			summary.Failed++
			continue
		}

		outcome := a.sms.SendSMS(ctx, c.Phone, body)
		if outcome.Err != nil {
			a.logger.Error("follow-up send failed", "contact_id", c.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		if err := a.storage.MarkContacted(c.ID, body); err != nil {
			a.logger.Error("contact update failed", "contact_id", c.ID, "error", err)
			continue
		}
		summary.FollowUps++
	}

	a.logger.Info("sms outreach complete",
		"enrolled", summary.Enrolled, "candidates", summary.Candidates,
		"sent", summary.Sent, "follow_ups", summary.FollowUps, "failed", summary.Failed)
	return summaryJSON(summary), nil
}
