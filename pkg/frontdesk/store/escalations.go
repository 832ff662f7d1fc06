package store

import (
	"fmt"
	"time"
)

// Escalation is an append-only record of a conversation exceeding the
// assistant's authority. Immutable after creation.
type Escalation struct {
	ID            int64
	Reason        string
	Details       string
	CustomerPhone string
	Channel       string
	CallID        string
	CreatedAt     time.Time
}

// CreateEscalation appends an escalation event.
func (s *Store) CreateEscalation(e *Escalation) error {
	e.CreatedAt = time.Now()
	res, err := s.DB.Exec(`
		INSERT INTO escalation_events (reason, details, customer_phone, channel, call_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Reason, e.Details, e.CustomerPhone, e.Channel, e.CallID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListEscalations returns escalations newest-first.
func (s *Store) ListEscalations(limit int) ([]Escalation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(`
		SELECT id, reason, details, customer_phone, channel, call_id, created_at
		FROM escalation_events ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []Escalation
	for rows.Next() {
		var e Escalation
		if err := rows.Scan(&e.ID, &e.Reason, &e.Details, &e.CustomerPhone,
			&e.Channel, &e.CallID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
