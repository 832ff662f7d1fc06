package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Lead source channels.
const (
	SourcePhoneCall = "Phone Call"
	SourceSMS       = "SMS"
	SourceManual    = "Manual"
	SourceThumbtack = "Thumbtack"
	SourceYelp      = "Yelp"
)

// Lead statuses: new → contacted → booked → completed/closed.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusBooked    = "booked"
	LeadStatusCompleted = "completed"
	LeadStatusClosed    = "closed"
)

// Lead is a candidate job captured from a conversation.
type Lead struct {
	ID            int64
	CustomerName  string
	Phone         string
	JobType       string
	Address       string
	Urgency       string
	PreferredDate string
	Notes         string
	HasPhotos     bool
	Source        string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateLead inserts a lead with status "new". Source and Phone must be
// populated by the caller (the tool layer normalizes them from the channel).
func (s *Store) CreateLead(l *Lead) error {
	if l.Phone == "" {
		return fmt.Errorf("lead phone is required")
	}
	if l.Source == "" {
		return fmt.Errorf("lead source is required")
	}
	now := time.Now()
	l.Status = LeadStatusNew
	l.CreatedAt = now
	l.UpdatedAt = now

	res, err := s.DB.Exec(`
		INSERT INTO leads (customer_name, phone, job_type, address, urgency,
			preferred_date, notes, has_photos, source, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.CustomerName, l.Phone, l.JobType, l.Address, l.Urgency,
		l.PreferredDate, l.Notes, l.HasPhotos, l.Source, l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// UpdateLeadStatus moves a lead along the status lifecycle.
func (s *Store) UpdateLeadStatus(id int64, status string) error {
	_, err := s.DB.Exec(`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", id, err)
	}
	return nil
}

// TouchLead refreshes updated_at, marking follow-up activity.
func (s *Store) TouchLead(id int64) error {
	_, err := s.DB.Exec(`UPDATE leads SET updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("touch lead %d: %w", id, err)
	}
	return nil
}

// ListLeads returns leads newest-first, optionally filtered by status.
func (s *Store) ListLeads(status string, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = s.DB.Query(`
			SELECT id, customer_name, phone, job_type, address, urgency, preferred_date,
				notes, has_photos, source, status, created_at, updated_at
			FROM leads WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	} else {
		rows, err = s.DB.Query(`
			SELECT id, customer_name, phone, job_type, address, urgency, preferred_date,
				notes, has_photos, source, status, created_at, updated_at
			FROM leads ORDER BY created_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

// LeadsIdleSince returns non-closed leads whose last update is older than
// cutoff. The nurture agent uses this to find stale conversations.
func (s *Store) LeadsIdleSince(cutoff time.Time) ([]Lead, error) {
	rows, err := s.DB.Query(`
		SELECT id, customer_name, phone, job_type, address, urgency, preferred_date,
			notes, has_photos, source, status, created_at, updated_at
		FROM leads
		WHERE status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at ASC`,
		LeadStatusNew, LeadStatusContacted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list idle leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func scanLeads(rows *sql.Rows) ([]Lead, error) {
	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.CustomerName, &l.Phone, &l.JobType, &l.Address,
			&l.Urgency, &l.PreferredDate, &l.Notes, &l.HasPhotos, &l.Source,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
