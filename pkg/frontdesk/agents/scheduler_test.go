package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// fakeAgent counts its runs and returns a scripted result.
type fakeAgent struct {
	name     string
	interval time.Duration
	runs     int
	err      error
}

func (f *fakeAgent) Name() string            { return f.name }
func (f *fakeAgent) Interval() time.Duration { return f.interval }
func (f *fakeAgent) Run(context.Context) (string, error) {
	f.runs++
	return fmt.Sprintf(`{"run":%d}`, f.runs), f.err
}

// memRunStore is an in-memory RunStore.
type memRunStore struct {
	runs []store.AgentRun
}

func (m *memRunStore) StartRun(id, agent string) error {
	m.runs = append(m.runs, store.AgentRun{
		ID: id, Agent: agent, Status: store.RunStatusRunning, StartedAt: time.Now(),
	})
	return nil
}

func (m *memRunStore) FinishRun(id string, runErr error, result string) error {
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].Status = store.RunStatusSuccess
			m.runs[i].Result = result
			if runErr != nil {
				m.runs[i].Status = store.RunStatusFailed
				m.runs[i].Error = runErr.Error()
			}
			now := time.Now()
			m.runs[i].EndedAt = &now
			return nil
		}
	}
	return fmt.Errorf("no run %s", id)
}

func (m *memRunStore) LatestRun(agent string) (*store.AgentRun, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Agent == agent {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memRunStore) LatestSuccess(agent string) (*store.AgentRun, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Agent == agent && m.runs[i].Status == store.RunStatusSuccess {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, nil
}

// newTestScheduler wires a scheduler with a frozen clock and no real
// sleeping.
func newTestScheduler(agents []Agent, rs RunStore) (*Scheduler, *time.Time) {
	s := NewScheduler(agents, rs, time.Second, time.Hour, nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.sleep = func(time.Duration) {}
	seq := 0
	s.newID = func() string { seq++; return fmt.Sprintf("run-%d", seq) }
	return s, &now
}

func TestTick_RunsDueAgentOnce(t *testing.T) {
	a := &fakeAgent{name: "market-scanner", interval: 6 * time.Hour}
	rs := &memRunStore{}
	s, _ := newTestScheduler([]Agent{a}, rs)

	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("expected 1 run, got %d", a.runs)
	}

	// Immediately due again? No — the watermark moved.
	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("agent re-ran before its interval, runs=%d", a.runs)
	}

	last, _ := rs.LatestRun("market-scanner")
	if last == nil || last.Status != store.RunStatusSuccess {
		t.Errorf("run record not finalized: %+v", last)
	}
}

func TestTick_AgentDueAgainAfterInterval(t *testing.T) {
	a := &fakeAgent{name: "sms-outreach", interval: 30 * time.Minute}
	s, now := newTestScheduler([]Agent{a}, &memRunStore{})

	s.Tick(context.Background())
	*now = now.Add(29 * time.Minute)
	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("not yet due, runs=%d", a.runs)
	}

	*now = now.Add(2 * time.Minute)
	s.Tick(context.Background())
	if a.runs != 2 {
		t.Fatalf("expected second run after interval, runs=%d", a.runs)
	}
}

func TestTick_ManualOnlyAgentNeverAutoRuns(t *testing.T) {
	a := &fakeAgent{name: "cold-caller", interval: 0}
	s, now := newTestScheduler([]Agent{a}, &memRunStore{})

	for i := 0; i < 5; i++ {
		*now = now.Add(24 * time.Hour)
		s.Tick(context.Background())
	}
	if a.runs != 0 {
		t.Fatalf("manual-only agent auto-ran %d times", a.runs)
	}

	// The manual path still works.
	if _, err := s.RunNow(context.Background(), "cold-caller"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if a.runs != 1 {
		t.Fatalf("RunNow did not execute, runs=%d", a.runs)
	}
}

func TestTick_PausesBetweenAgents(t *testing.T) {
	a := &fakeAgent{name: "email-outreach", interval: time.Minute}
	b := &fakeAgent{name: "sms-outreach", interval: time.Minute}
	s, _ := newTestScheduler([]Agent{a, b}, &memRunStore{})

	var pauses int
	s.sleep = func(time.Duration) { pauses++ }

	s.Tick(context.Background())
	if a.runs != 1 || b.runs != 1 {
		t.Fatalf("both agents should run, got %d/%d", a.runs, b.runs)
	}
	if pauses != 1 {
		t.Errorf("expected 1 pause between 2 agents, got %d", pauses)
	}
}

func TestStart_ReconcilesWatermarkFromHistory(t *testing.T) {
	a := &fakeAgent{name: "lead-nurture", interval: 24 * time.Hour}
	rs := &memRunStore{}
	s, now := newTestScheduler([]Agent{a}, rs)

	// A successful run 1 hour ago survives the restart.
	rs.runs = append(rs.runs, store.AgentRun{
		ID: "old", Agent: "lead-nurture",
		Status: store.RunStatusSuccess, StartedAt: now.Add(-time.Hour),
	})
	s.reconcile()

	s.Tick(context.Background())
	if a.runs != 0 {
		t.Fatalf("agent ran despite a recent persisted success, runs=%d", a.runs)
	}

	*now = now.Add(24 * time.Hour)
	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("agent should be due a day later, runs=%d", a.runs)
	}
}

func TestStart_ReconcilesOrphanedRunningRecord(t *testing.T) {
	a := &fakeAgent{name: "market-scanner", interval: time.Minute}
	rs := &memRunStore{}
	s, now := newTestScheduler([]Agent{a}, rs)

	// The process died mid-run: a running record with no end.
	rs.runs = append(rs.runs, store.AgentRun{
		ID: "orphan", Agent: "market-scanner",
		Status: store.RunStatusRunning, StartedAt: now.Add(-10 * time.Minute),
	})
	s.reconcile()

	last, _ := rs.LatestRun("market-scanner")
	if last.Status != store.RunStatusFailed {
		t.Fatalf("orphaned run status = %q, want failed", last.Status)
	}
	if !strings.Contains(last.Error, "interrupted by restart") {
		t.Fatalf("orphaned run error = %q", last.Error)
	}
	if last.EndedAt == nil {
		t.Fatal("orphaned run should be finalized with an end time")
	}

	// With the record finalized the agent is schedulable again.
	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("agent still blocked after reconcile, runs=%d", a.runs)
	}
}

func TestExecute_QuotaErrorPushesNextAttempt(t *testing.T) {
	a := &fakeAgent{
		name: "market-scanner", interval: 30 * time.Minute,
		err: &receptionist.APIError{StatusCode: http.StatusTooManyRequests, Body: "quota"},
	}
	s, now := newTestScheduler([]Agent{a}, &memRunStore{})

	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("expected first attempt, runs=%d", a.runs)
	}

	// One interval later it would normally be due, but the cooldown (1h)
	// holds it back.
	a.err = nil
	*now = now.Add(31 * time.Minute)
	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("quota backoff ignored, runs=%d", a.runs)
	}

	*now = now.Add(30 * time.Minute)
	s.Tick(context.Background())
	if a.runs != 2 {
		t.Fatalf("agent should retry after the cooldown, runs=%d", a.runs)
	}
}

func TestExecute_PlainFailureRetriesNextInterval(t *testing.T) {
	a := &fakeAgent{name: "email-outreach", interval: 30 * time.Minute, err: fmt.Errorf("smtp down")}
	rs := &memRunStore{}
	s, _ := newTestScheduler([]Agent{a}, rs)

	s.Tick(context.Background())
	if a.runs != 1 {
		t.Fatalf("expected attempt, runs=%d", a.runs)
	}
	last, _ := rs.LatestRun("email-outreach")
	if last.Status != store.RunStatusFailed || last.Error == "" {
		t.Errorf("failed run not recorded: %+v", last)
	}

	// A non-quota failure leaves the watermark alone: due again on the
	// next tick.
	a.err = nil
	s.Tick(context.Background())
	if a.runs != 2 {
		t.Fatalf("expected immediate retry, runs=%d", a.runs)
	}
}

func TestExecute_SkipsWhenRunningRecordExists(t *testing.T) {
	a := &fakeAgent{name: "market-scanner", interval: time.Minute}
	rs := &memRunStore{}
	rs.runs = append(rs.runs, store.AgentRun{
		ID: "stuck", Agent: "market-scanner", Status: store.RunStatusRunning, StartedAt: time.Now(),
	})
	s, _ := newTestScheduler([]Agent{a}, rs)

	summary, err := s.RunNow(context.Background(), "market-scanner")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if summary != "" || a.runs != 0 {
		t.Fatalf("agent must not start over a running record, runs=%d", a.runs)
	}
}

func TestRunNow_UnknownAgent(t *testing.T) {
	s, _ := newTestScheduler(nil, &memRunStore{})
	_, err := s.RunNow(context.Background(), "no-such-agent")
	if err == nil {
		t.Fatal("expected an error")
	}
	var unknown *UnknownAgentError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownAgentError, got %T", err)
	}
	if unknown.Name != "no-such-agent" {
		t.Errorf("error should carry the name, got %q", unknown.Name)
	}
}
