// Package agents implements the unattended background agents (market
// scanning, outreach, nurture) and the scheduler that runs them.
package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// followUpAfter is how long a single outreach touch may go unanswered
// before the contact becomes a follow-up candidate.
const followUpAfter = 72 * time.Hour

// Agent names form a closed set; the dispatch table is built at startup.
const (
	NameMarketScanner = "market-scanner"
	NameEmailOutreach = "email-outreach"
	NameSMSOutreach   = "sms-outreach"
	NameColdCaller    = "cold-caller"
	NameLeadNurture   = "lead-nurture"
)

// Agent is one background automation job.
type Agent interface {
	// Name is the agent's stable identifier, used in run records.
	Name() string

	// Interval is the minimum time between successful runs.
	// Zero means manual-only: the scheduler never auto-runs it.
	Interval() time.Duration

	// Run executes the agent and returns a serialized summary.
	Run(ctx context.Context) (string, error)
}

// Storage is the persistence surface the agents share. *store.Store
// implements it; tests substitute fakes.
type Storage interface {
	CreateOpportunity(o *store.Opportunity) (bool, error)
	UncontactedOpportunities(tenant string, limit int) ([]store.Opportunity, error)
	MarkOpportunityContacted(id int64) error
	EnsureCampaign(name, channel string) (*store.Campaign, error)
	AddContact(c *store.Contact) error
	PendingContacts(channel string, limit int) ([]store.Contact, error)
	SecondTouchContacts(channel string, cutoff time.Time, limit int) ([]store.Contact, error)
	MarkContacted(contactID int64, message string) error
	LeadsIdleSince(cutoff time.Time) ([]store.Lead, error)
	TouchLead(id int64) error
	UpdateLeadStatus(id int64, status string) error
}

// TextCompleter generates outreach content. *receptionist.LLMClient
// implements it.
type TextCompleter interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// SMSSender sends outreach texts.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) notify.Outcome
}

// EmailSender sends outreach email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) notify.Outcome
}

// CallPlacer starts outbound calls.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, twimlURL string) notify.Outcome
}

// enrollProspects moves scanned opportunities the channel can reach into
// its campaign as pending contacts. Enrollment marks the opportunity
// contacted, so each prospect lands on exactly one channel.
func enrollProspects(storage Storage, tenant, campaignName, channel string, reachable func(o store.Opportunity) bool, limit int, logger *slog.Logger) int {
	opps, err := storage.UncontactedOpportunities(tenant, limit)
	if err != nil {
		logger.Error("uncontacted opportunities read failed", "error", err)
		return 0
	}

	enrolled := 0
	var campaign *store.Campaign
	for _, o := range opps {
		if !reachable(o) {
			continue
		}
		if campaign == nil {
			campaign, err = storage.EnsureCampaign(campaignName, channel)
			if err != nil {
				logger.Error("campaign lookup failed", "campaign", campaignName, "error", err)
				return enrolled
			}
		}
		contact := &store.Contact{
			CampaignID: campaign.ID,
			Name:       o.BusinessName,
			Phone:      o.Phone,
			Email:      o.Email,
		}
		if err := storage.AddContact(contact); err != nil {
			logger.Error("contact enrollment failed", "business", o.BusinessName, "error", err)
			continue
		}
		if err := storage.MarkOpportunityContacted(o.ID); err != nil {
			logger.Error("opportunity update failed", "opportunity_id", o.ID, "error", err)
		}
		enrolled++
	}
	return enrolled
}
