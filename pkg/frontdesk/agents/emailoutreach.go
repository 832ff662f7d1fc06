// emailoutreach.go implements the email-outreach agent: enrolls scanned
// prospects that have an email address, drafts and sends a first-touch
// email to each pending contact, and follows up once when a first touch
// goes unanswered.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// EmailOutreach works through pending email campaign contacts.
type EmailOutreach struct {
	storage Storage
	llm     TextCompleter
	email   EmailSender
	tenant  string
	trade   string
	logger  *slog.Logger
	now     func() time.Time
}

// NewEmailOutreach creates the email-outreach agent.
func NewEmailOutreach(storage Storage, llm TextCompleter, email EmailSender, cfg *receptionist.Config, logger *slog.Logger) *EmailOutreach {
	return &EmailOutreach{
		storage: storage,
		llm:     llm,
		email:   email,
		tenant:  cfg.Business.Name,
		trade:   cfg.Business.Trade,
		logger:  logger.With("agent", NameEmailOutreach),
		now:     time.Now,
	}
}

func (a *EmailOutreach) Name() string            { return NameEmailOutreach }
func (a *EmailOutreach) Interval() time.Duration { return 30 * time.Minute }

// emailDraft is the JSON shape requested from the model.
type emailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type outreachSummary struct {
	Enrolled   int `json:"enrolled"`
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	FollowUps  int `json:"followUps"`
	Failed     int `json:"failed"`
}

// Run enrolls scanned prospects that have an email address, drafts and
// sends one email per pending contact, then follows up with contacts
// whose first touch went unanswered. A send without provider
// credentials is logged and still recorded as a touch, so the contact
// is not re-targeted forever.
func (a *EmailOutreach) Run(ctx context.Context) (string, error) {
	summary := outreachSummary{}
	summary.Enrolled = enrollProspects(a.storage, a.tenant, "prospect email", "email",
		func(o store.Opportunity) bool { return o.Email != "" }, 10, a.logger)

	contacts, err := a.storage.PendingContacts("email", 10)
	if err != nil {
		return "", fmt.Errorf("pending contacts: %w", err)
	}

	summary.Candidates = len(contacts)
	for _, c := range contacts {
		if c.Email == "" {
			continue
		}

		prompt := fmt.Sprintf(
			"Write a short, friendly first-touch email from %s (%s) to %s. "+
				"Offer a free estimate, no hard sell. "+
				"Respond with a JSON object with keys subject and body.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(c.Name))

		content, err := a.llm.Complete(ctx, "You write concise outreach email for a trade business.", prompt)
		if err != nil {
			return summaryJSON(summary), fmt.Errorf("email draft for contact %d: %w", c.ID, err)
		}
		var draft emailDraft
		if err := receptionist.DecodeJSON(content, &draft); err != nil {
			a.logger.Warn("undecodable email draft, skipping contact", "contact_id", c.ID, "error", err)
			summary.Failed++
			continue
		}

		outcome := a.email.Send(ctx, c.Email, draft.Subject, draft.Body)
		if outcome.Err != nil {
			a.logger.Error("email send failed", "contact_id", c.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		if err := a.storage.MarkContacted(c.ID, draft.Subject); err != nil {
			a.logger.Error("contact update failed", "contact_id", c.ID, "error", err)
			continue
		}
		summary.Sent++
	}

	// Second touch for contacts whose first email went unanswered.
	// MarkContacted moves their touch count past one, so each contact
	// gets exactly one follow-up.
	stale, err := a.storage.SecondTouchContacts("email", a.now().Add(-followUpAfter), 10)
	if err != nil {
		return summaryJSON(summary), fmt.Errorf("follow-up contacts: %w", err)
	}
	for _, c := range stale {
		if c.Email == "" {
			continue
		}

		prompt := fmt.Sprintf(
			"Write a short, friendly follow-up email from %s (%s) to %s, who has not replied "+
				"to an earlier email with subject %q. One gentle reminder, no pressure. "+
				"Respond with a JSON object with keys subject and body.",
			orAny(a.tenant), orTrade(a.trade), orAnyName(c.Name), c.LastMessage)

		content, err := a.llm.Complete(ctx, "You write concise outreach email for a trade business.", prompt)
		if err != nil {
			return summaryJSON(summary), fmt.Errorf("follow-up draft for contact %d: %w", c.ID, err)
		}
		var draft emailDraft
		if err := receptionist.DecodeJSON(content, &draft); err != nil {
			a.logger.Warn("undecodable follow-up draft, skipping contact", "contact_id", c.ID, "error", err)
			summary.Failed++
			continue
		}

		outcome := a.email.Send(ctx, c.Email, draft.Subject, draft.Body)
		if outcome.Err != nil {
			a.logger.Error("follow-up send failed", "contact_id", c.ID, "error", outcome.Err)
			summary.Failed++
			continue
		}

		if err := a.storage.MarkContacted(c.ID, draft.Subject); err != nil {
			a.logger.Error("contact update failed", "contact_id", c.ID, "error", err)
			continue
		}
		summary.FollowUps++
	}

	a.logger.Info("email outreach complete",
		"enrolled", summary.Enrolled, "candidates", summary.Candidates,
		"sent", summary.Sent, "follow_ups", summary.FollowUps, "failed", summary.Failed)
	return summaryJSON(summary), nil
}

func summaryJSON(s outreachSummary) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func orAnyName(s string) string {
	if s == "" {
		return "the business owner"
	}
	return s
}
