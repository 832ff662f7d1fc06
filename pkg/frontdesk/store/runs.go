package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Agent run statuses: running → success | failed.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// AgentRun is the durable record of one background agent execution.
// The scheduler derives "is this agent due" from these rows, so the
// check survives process restarts.
type AgentRun struct {
	ID        string
	Agent     string
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
	Result    string
	Error     string
}

// StartRun inserts a running record for an agent.
func (s *Store) StartRun(id, agent string) error {
	_, err := s.DB.Exec(`
		INSERT INTO agent_runs (id, agent, status, started_at) VALUES (?, ?, ?, ?)`,
		id, agent, RunStatusRunning, time.Now())
	if err != nil {
		return fmt.Errorf("insert agent run: %w", err)
	}
	return nil
}

// FinishRun finalizes a run to success or failed. Every started run must
// be finalized through here, even on error paths.
func (s *Store) FinishRun(id string, runErr error, result string) error {
	status := RunStatusSuccess
	errText := ""
	if runErr != nil {
		status = RunStatusFailed
		errText = runErr.Error()
	}
	_, err := s.DB.Exec(`
		UPDATE agent_runs SET status = ?, ended_at = ?, result = ?, error = ? WHERE id = ?`,
		status, time.Now(), result, errText, id)
	if err != nil {
		return fmt.Errorf("finalize agent run %s: %w", id, err)
	}
	return nil
}

// LatestRun returns the most recent run row for an agent, or nil.
func (s *Store) LatestRun(agent string) (*AgentRun, error) {
	row := s.DB.QueryRow(`
		SELECT id, agent, status, started_at, ended_at, result, error
		FROM agent_runs WHERE agent = ? ORDER BY started_at DESC LIMIT 1`, agent)
	return scanRun(row)
}

// LatestSuccess returns the most recent successful run for an agent, or nil.
func (s *Store) LatestSuccess(agent string) (*AgentRun, error) {
	row := s.DB.QueryRow(`
		SELECT id, agent, status, started_at, ended_at, result, error
		FROM agent_runs WHERE agent = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		agent, RunStatusSuccess)
	return scanRun(row)
}

// ListRuns returns recent runs across all agents, newest-first.
func (s *Store) ListRuns(limit int) ([]AgentRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(`
		SELECT id, agent, status, started_at, ended_at, result, error
		FROM agent_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent runs: %w", err)
	}
	defer rows.Close()

	var out []AgentRun
	for rows.Next() {
		var r AgentRun
		var ended sql.NullTime
		if err := rows.Scan(&r.ID, &r.Agent, &r.Status, &r.StartedAt, &ended, &r.Result, &r.Error); err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			r.EndedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRun(row *sql.Row) (*AgentRun, error) {
	var r AgentRun
	var ended sql.NullTime
	err := row.Scan(&r.ID, &r.Agent, &r.Status, &r.StartedAt, &ended, &r.Result, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent run: %w", err)
	}
	if ended.Valid {
		t := ended.Time
		r.EndedAt = &t
	}
	return &r, nil
}
