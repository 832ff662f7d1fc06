// scheduler.go runs due agents once per minute, one at a time, with a
// pause between agents and quota backoff. Whether an agent is due is
// derived from persisted run history, so restarts never cause a re-run
// storm.
package agents

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// RunStore persists agent run records. *store.Store implements it.
type RunStore interface {
	StartRun(id, agent string) error
	FinishRun(id string, runErr error, result string) error
	LatestRun(agent string) (*store.AgentRun, error)
	LatestSuccess(agent string) (*store.AgentRun, error)
}

// Scheduler ticks every minute and executes due agents serially.
type Scheduler struct {
	agents []Agent
	byName map[string]Agent
	runs   RunStore
	logger *slog.Logger

	// pause is the delay between agents within one cycle, bounding load
	// on the completion service.
	pause time.Duration

	// cooldown delays an agent's next attempt after a quota error.
	cooldown time.Duration

	lastRun map[string]time.Time
	ticking bool
	mu      sync.Mutex

	cron *cron.Cron

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
	newID func() string
}

// NewScheduler builds the dispatch table. Agent order is execution order
// within a cycle.
func NewScheduler(agentList []Agent, runs RunStore, pause, cooldown time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if pause <= 0 {
		pause = 10 * time.Second
	}
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	byName := make(map[string]Agent, len(agentList))
	for _, a := range agentList {
		byName[a.Name()] = a
	}
	return &Scheduler{
		agents:   agentList,
		byName:   byName,
		runs:     runs,
		logger:   logger.With("component", "scheduler"),
		pause:    pause,
		cooldown: cooldown,
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
		sleep:    time.Sleep,
		newID:    uuid.NewString,
	}
}

// Start reconciles watermarks from persisted run history and begins the
// minute tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.reconcile()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every 1m", func() { s.Tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("agent scheduler started", "agents", len(s.agents))
	return nil
}

// Stop halts the tick loop. A tick in progress finishes.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.logger.Info("agent scheduler stopped")
}

// reconcile finalizes run records orphaned by a crash, then seeds
// in-memory watermarks from the latest successful run of each agent.
// An orphaned running record would otherwise block the agent on every
// future tick.
func (s *Scheduler) reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		latest, err := s.runs.LatestRun(a.Name())
		if err != nil {
			s.logger.Error("run history read failed", "agent", a.Name(), "error", err)
			continue
		}
		if latest != nil && latest.Status == store.RunStatusRunning {
			s.logger.Warn("finalizing run orphaned by restart",
				"agent", a.Name(), "run_id", latest.ID)
			if err := s.runs.FinishRun(latest.ID, errors.New("interrupted by restart"), ""); err != nil {
				s.logger.Error("orphaned run finalization failed",
					"agent", a.Name(), "run_id", latest.ID, "error", err)
			}
		}

		run, err := s.runs.LatestSuccess(a.Name())
		if err != nil {
			s.logger.Error("run history read failed", "agent", a.Name(), "error", err)
			continue
		}
		if run != nil {
			s.lastRun[a.Name()] = run.StartedAt
			s.logger.Info("watermark restored",
				"agent", a.Name(), "last_success", run.StartedAt)
		}
	}
}

// Tick executes every due agent once, in order. Overlapping ticks are
// skipped so agents never run concurrently.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	ran := false
	for _, a := range s.agents {
		interval := a.Interval()
		if interval <= 0 {
			continue // manual-only
		}

		s.mu.Lock()
		last := s.lastRun[a.Name()]
		s.mu.Unlock()

		if s.now().Sub(last) < interval {
			continue
		}

		if ran {
			s.sleep(s.pause)
		}
		s.execute(ctx, a)
		ran = true
	}
}

// RunNow executes one agent by name regardless of its interval — the
// manual path for cold-caller and CLI triggers.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	a, ok := s.byName[name]
	if !ok {
		return "", &UnknownAgentError{Name: name}
	}
	return s.execute(ctx, a)
}

// AgentInterval returns the schedule interval for a registered agent,
// or zero for unknown names.
func (s *Scheduler) AgentInterval(name string) time.Duration {
	if a, ok := s.byName[name]; ok {
		return a.Interval()
	}
	return 0
}

// AgentNames returns the registered agent names in execution order.
func (s *Scheduler) AgentNames() []string {
	out := make([]string, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.Name())
	}
	return out
}

// execute runs one agent with a durable run record around it. Every
// started run is finalized, success or failure.
func (s *Scheduler) execute(ctx context.Context, a Agent) (string, error) {
	name := a.Name()

	// One running record per agent at a time.
	if latest, err := s.runs.LatestRun(name); err != nil {
		s.logger.Error("run history read failed", "agent", name, "error", err)
		return "", err
	} else if latest != nil && latest.Status == store.RunStatusRunning {
		s.logger.Warn("agent already has a running record, skipping", "agent", name)
		return "", nil
	}

	id := s.newID()
	if err := s.runs.StartRun(id, name); err != nil {
		s.logger.Error("run record creation failed", "agent", name, "error", err)
		return "", err
	}

	started := s.now()
	s.logger.Info("agent starting", "agent", name, "run_id", id)

	summary, runErr := a.Run(ctx)

	if err := s.runs.FinishRun(id, runErr, summary); err != nil {
		s.logger.Error("run record finalization failed", "agent", name, "error", err)
	}

	s.mu.Lock()
	switch {
	case runErr == nil:
		s.lastRun[name] = started
	case receptionist.IsQuotaError(runErr):
		// Push the next attempt out by the cooldown instead of retrying
		// on the next tick.
		s.lastRun[name] = started.Add(s.cooldown - a.Interval())
	}
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("agent failed",
			"agent", name, "run_id", id,
			"quota_backoff", receptionist.IsQuotaError(runErr), "error", runErr)
		return summary, runErr
	}

	s.logger.Info("agent finished",
		"agent", name, "run_id", id,
		"duration_ms", s.now().Sub(started).Milliseconds())
	return summary, nil
}

// UnknownAgentError is returned by RunNow for names outside the
// dispatch table.
type UnknownAgentError struct {
	Name string
}

func (e *UnknownAgentError) Error() string {
	return "unknown agent: " + e.Name
}
