// Package notify implements the outbound side effects of the automation
// core: owner SMS, transactional email, spreadsheet rows, webhooks and
// outbound calls. Every operation returns an Outcome instead of a bare
// bool so callers (and tests) can tell "no credentials configured" apart
// from "provider rejected the request".
package notify

// Status classifies the result of one side effect.
type Status string

const (
	// StatusOK means the provider accepted the request.
	StatusOK Status = "ok"

	// StatusSkipped means the side effect did not run, usually because
	// no credentials are configured. Not an error.
	StatusSkipped Status = "skipped"

	// StatusFailed means the provider rejected the request or was
	// unreachable. Logged, never fatal to the primary operation.
	StatusFailed Status = "failed"
)

// Outcome is the result of a best-effort side effect.
type Outcome struct {
	Status Status

	// Reason explains a skip (e.g. "twilio not configured").
	Reason string

	// Err holds the failure when Status is StatusFailed.
	Err error
}

// OK reports whether the side effect succeeded.
func (o Outcome) OK() bool { return o.Status == StatusOK }

func ok() Outcome                        { return Outcome{Status: StatusOK} }
func skipped(reason string) Outcome      { return Outcome{Status: StatusSkipped, Reason: reason} }
func failed(err error) Outcome           { return Outcome{Status: StatusFailed, Err: err} }
