// Package receptionist – tools.go implements the two side-effecting
// operations the model can invoke: capture_lead and escalate_conversation.
// Lead/escalation persistence is unconditional; spreadsheet, webhook and
// owner-notification sub-steps are best-effort and reported individually.
package receptionist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// RecordStore is the persistence surface the tool layer needs.
type RecordStore interface {
	CreateLead(l *store.Lead) error
	CreateEscalation(e *store.Escalation) error
}

// Messenger sends SMS notifications (owner alerts).
type Messenger interface {
	SendSMS(ctx context.Context, to, body string) notify.Outcome
}

// SheetWriter appends lead rows to the external spreadsheet.
type SheetWriter interface {
	AppendRow(ctx context.Context, values []any) notify.Outcome
}

// WebhookFirer posts lead payloads to the outbound webhook.
type WebhookFirer interface {
	Fire(ctx context.Context, payload any) notify.Outcome
}

// Tools bundles the side-effect collaborators behind the tool handlers.
type Tools struct {
	store      RecordStore
	messenger  Messenger
	sheets     SheetWriter
	webhook    WebhookFirer
	ownerPhone string
	logger     *slog.Logger
}

// NewTools creates the tool service.
func NewTools(rs RecordStore, messenger Messenger, sheets SheetWriter, webhook WebhookFirer, ownerPhone string, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{
		store:      rs,
		messenger:  messenger,
		sheets:     sheets,
		webhook:    webhook,
		ownerPhone: ownerPhone,
		logger:     logger.With("component", "tools"),
	}
}

// RegisterAll registers capture_lead and escalate_conversation on the executor.
func (t *Tools) RegisterAll(exec *ToolExecutor) {
	exec.Register(captureLeadDef, t.CaptureLead)
	exec.Register(escalateDef, t.Escalate)
}

var captureLeadDef = ToolDefinition{
	Type: "function",
	Function: FunctionDef{
		Name:        "capture_lead",
		Description: "Save a new job lead once you have the customer's name, the kind of work they need, and how urgent it is. Call this as soon as you have enough to act on.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"customer_name": {"type": "string", "description": "Customer's name"},
				"phone": {"type": "string", "description": "Customer's phone number"},
				"job_type": {"type": "string", "description": "Kind of work, e.g. plumbing, electrical"},
				"address": {"type": "string", "description": "Job address, if given"},
				"urgency": {"type": "string", "enum": ["emergency", "urgent", "flexible"], "description": "How soon the work is needed"},
				"preferred_date": {"type": "string", "description": "Preferred date or time window, if given"},
				"notes": {"type": "string", "description": "Anything else useful about the job"},
				"has_photos": {"type": "boolean", "description": "Whether the customer sent photos"},
				"source": {"type": "string", "enum": ["Phone Call", "SMS", "Manual", "Thumbtack", "Yelp"], "description": "Where the lead came from"}
			},
			"required": ["job_type"]
		}`),
	},
}

var escalateDef = ToolDefinition{
	Type: "function",
	Function: FunctionDef{
		Name:        "escalate_conversation",
		Description: "Flag this conversation for the owner when it exceeds what you can commit to: big budgets, full remodels, upset customers, or anyone asking for the owner.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"reason": {"type": "string", "enum": ["high_budget", "full_remodel", "angry_client", "owner_request", "complex_electrical", "complex_plumbing", "other"], "description": "Why this needs a human"},
				"details": {"type": "string", "description": "Short summary of the situation"},
				"customer_phone": {"type": "string", "description": "Customer's phone number"}
			},
			"required": ["reason"]
		}`),
	},
}

// CaptureLead persists a lead and fans out the best-effort side effects.
// Lead persistence failing is the only way this tool fails; each
// sub-step failure is logged and reflected as false in the result.
func (t *Tools) CaptureLead(ctx context.Context, args map[string]any) (any, error) {
	info := CallFromContext(ctx)

	lead := &store.Lead{
		CustomerName:  stringArg(args, "customer_name"),
		Phone:         stringArg(args, "phone"),
		JobType:       stringArg(args, "job_type"),
		Address:       stringArg(args, "address"),
		Urgency:       stringArg(args, "urgency"),
		PreferredDate: stringArg(args, "preferred_date"),
		Notes:         stringArg(args, "notes"),
		HasPhotos:     boolArg(args, "has_photos"),
		Source:        stringArg(args, "source"),
	}

	// Normalize source and phone from the calling channel when the
	// model omits them.
	if lead.Phone == "" {
		lead.Phone = info.CallerPhone
	}
	if lead.Source == "" {
		switch info.Channel {
		case "voice":
			lead.Source = store.SourcePhoneCall
		case "sms":
			lead.Source = store.SourceSMS
		default:
			lead.Source = store.SourceManual
		}
	}

	if err := t.store.CreateLead(lead); err != nil {
		return nil, fmt.Errorf("saving lead: %w", err)
	}
	t.logger.Info("lead captured",
		"lead_id", lead.ID, "job_type", lead.JobType, "urgency", lead.Urgency, "source", lead.Source)

	sheet := t.sheets.AppendRow(ctx, []any{
		lead.CreatedAt.Format("2006-01-02 15:04"), lead.CustomerName, lead.Phone,
		lead.JobType, lead.Urgency, lead.Address, lead.PreferredDate, lead.Notes, lead.Source,
	})
	webhook := t.webhook.Fire(ctx, map[string]any{
		"event": "lead.captured",
		"lead": map[string]any{
			"id": lead.ID, "customer_name": lead.CustomerName, "phone": lead.Phone,
			"job_type": lead.JobType, "urgency": lead.Urgency, "address": lead.Address,
			"preferred_date": lead.PreferredDate, "notes": lead.Notes,
			"has_photos": lead.HasPhotos, "source": lead.Source, "status": lead.Status,
		},
	})
	owner := t.notifyOwner(ctx, fmt.Sprintf("New lead: %s — %s (%s). Phone: %s",
		orUnknown(lead.CustomerName), orUnknown(lead.JobType), orUnknown(lead.Urgency), lead.Phone))

	return map[string]any{
		"success":        true,
		"lead_id":        lead.ID,
		"sheet_saved":    sheet.OK(),
		"webhook_fired":  webhook.OK(),
		"owner_notified": owner.OK(),
	}, nil
}

// Escalate persists an escalation event and best-effort notifies the
// owner. Notification failure never invalidates the escalation record.
func (t *Tools) Escalate(ctx context.Context, args map[string]any) (any, error) {
	info := CallFromContext(ctx)

	reason := stringArg(args, "reason")
	details := stringArg(args, "details")
	phone := stringArg(args, "customer_phone")
	if phone == "" {
		phone = info.CallerPhone
	}

	return t.escalate(ctx, reason, details, phone, info.Channel, info.CallID)
}

// EscalateDirect fires an escalation without a model tool call; the
// keyword detector uses this path.
func (t *Tools) EscalateDirect(ctx context.Context, reason, details string) (map[string]any, error) {
	info := CallFromContext(ctx)
	return t.escalate(ctx, reason, details, info.CallerPhone, info.Channel, info.CallID)
}

func (t *Tools) escalate(ctx context.Context, reason, details, phone, channel, callID string) (map[string]any, error) {
	label := EscalationLabel(reason)

	event := &store.Escalation{
		Reason:        reason,
		Details:       details,
		CustomerPhone: phone,
		Channel:       channel,
		CallID:        callID,
	}
	if err := t.store.CreateEscalation(event); err != nil {
		return nil, fmt.Errorf("saving escalation: %w", err)
	}
	t.logger.Info("conversation escalated",
		"escalation_id", event.ID, "reason", reason, "channel", channel)

	msg := fmt.Sprintf("Escalation: %s. Customer: %s.", label, orUnknown(phone))
	if details != "" {
		msg += " " + details
	}
	t.notifyOwner(ctx, msg)

	return map[string]any{
		"success":      true,
		"escalated":    true,
		"reason_label": label,
	}, nil
}

// notifyOwner sends the owner an SMS, degrading to a log line when no
// owner number is configured.
func (t *Tools) notifyOwner(ctx context.Context, body string) notify.Outcome {
	if t.ownerPhone == "" {
		t.logger.Info("owner phone not configured; notification logged only", "body", body)
		return notify.Outcome{Status: notify.StatusSkipped, Reason: "owner phone not configured"}
	}
	return t.messenger.SendSMS(ctx, t.ownerPhone, body)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
