// escalation.go maps escalation reason codes to owner-facing labels and
// implements the keyword fallback detector for conversations where the
// model never invokes the escalation tool explicitly.
package receptionist

import "strings"

// Escalation reason codes.
const (
	ReasonHighBudget        = "high_budget"
	ReasonFullRemodel       = "full_remodel"
	ReasonAngryClient       = "angry_client"
	ReasonOwnerRequest      = "owner_request"
	ReasonComplexElectrical = "complex_electrical"
	ReasonComplexPlumbing   = "complex_plumbing"
	ReasonOther             = "other"
)

// escalationLabels is the fixed reason → label table. The mapping is
// idempotent: a reason code always resolves to the same label.
var escalationLabels = map[string]string{
	ReasonHighBudget:        "High-budget job",
	ReasonFullRemodel:       "Full remodel request",
	ReasonAngryClient:       "Upset customer",
	ReasonOwnerRequest:      "Asked to speak with the owner",
	ReasonComplexElectrical: "Complex electrical work",
	ReasonComplexPlumbing:   "Complex plumbing work",
	ReasonOther:             "Needs human attention",
}

// EscalationLabel returns the human-readable label for a reason code.
// Unknown codes resolve to the "other" label.
func EscalationLabel(reason string) string {
	if label, ok := escalationLabels[strings.ToLower(strings.TrimSpace(reason))]; ok {
		return label
	}
	return escalationLabels[ReasonOther]
}

// escalationKeywords maps trigger phrases to reason codes for the
// fallback detector. Checked in order so more specific phrases win.
var escalationKeywords = []struct {
	phrases []string
	reason  string
}{
	{[]string{"full remodel", "whole house remodel", "gut renovation", "complete remodel"}, ReasonFullRemodel},
	{[]string{"speak to the owner", "talk to the owner", "speak with the owner", "the owner please"}, ReasonOwnerRequest},
	{[]string{"electrical panel", "rewire", "rewiring", "200 amp", "service upgrade"}, ReasonComplexElectrical},
	{[]string{"repipe", "sewer line", "main line replacement", "slab leak"}, ReasonComplexPlumbing},
}

// DetectEscalation scans free text for phrases that should reach a human
// even when the model did not call escalate_conversation. Returns the
// reason code and true on a match.
func DetectEscalation(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range escalationKeywords {
		for _, phrase := range kw.phrases {
			if strings.Contains(lower, phrase) {
				return kw.reason, true
			}
		}
	}
	return "", false
}
