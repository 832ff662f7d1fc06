package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outreach contact statuses.
const (
	ContactStatusPending   = "pending"
	ContactStatusContacted = "contacted"
	ContactStatusReplied   = "replied"
	ContactStatusClosed    = "closed"
)

// Opportunity is a prospective customer found by the market scanner.
type Opportunity struct {
	ID           int64
	Tenant       string
	BusinessName string
	Location     string
	Industry     string
	Issues       string
	Phone        string
	Email        string
	Contacted    bool
	CreatedAt    time.Time
}

// Campaign groups outreach contacts under one channel and message theme.
type Campaign struct {
	ID         int64
	Name       string
	Channel    string // "email", "sms" or "call"
	Status     string
	SentCount  int
	ReplyCount int
	CreatedAt  time.Time
}

// Contact is one person targeted by a campaign.
type Contact struct {
	ID          int64
	CampaignID  int64
	Name        string
	Phone       string
	Email       string
	Status      string
	LastMessage string
	TouchCount  int
	UpdatedAt   time.Time
}

// CreateOpportunity inserts a scanned opportunity. Returns false when the
// (tenant, business name) pair already exists; duplicates are never
// re-inserted.
func (s *Store) CreateOpportunity(o *Opportunity) (bool, error) {
	o.CreatedAt = time.Now()
	res, err := s.DB.Exec(`
		INSERT OR IGNORE INTO market_opportunities
			(tenant, business_name, location, industry, issues, phone, email, contacted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		o.Tenant, o.BusinessName, o.Location, o.Industry, o.Issues, o.Phone, o.Email, o.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert opportunity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	o.ID, _ = res.LastInsertId()
	return true, nil
}

// HasOpportunity reports whether a business is already recorded for the
// tenant. Comparison is case-insensitive.
func (s *Store) HasOpportunity(tenant, businessName string) (bool, error) {
	var n int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM market_opportunities
		WHERE tenant = ? AND LOWER(business_name) = ?`,
		tenant, strings.ToLower(businessName)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check opportunity: %w", err)
	}
	return n > 0, nil
}

// ListOpportunities returns opportunities for a tenant, newest-first.
func (s *Store) ListOpportunities(tenant string, limit int) ([]Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(`
		SELECT id, tenant, business_name, location, industry, issues, phone, email, contacted, created_at
		FROM market_opportunities WHERE tenant = ?
		ORDER BY created_at DESC LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// UncontactedOpportunities returns opportunities no outreach channel has
// picked up yet, oldest-first.
func (s *Store) UncontactedOpportunities(tenant string, limit int) ([]Opportunity, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.DB.Query(`
		SELECT id, tenant, business_name, location, industry, issues, phone, email, contacted, created_at
		FROM market_opportunities WHERE tenant = ? AND contacted = 0
		ORDER BY created_at ASC LIMIT ?`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncontacted opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

func scanOpportunities(rows *sql.Rows) ([]Opportunity, error) {
	var out []Opportunity
	for rows.Next() {
		var o Opportunity
		if err := rows.Scan(&o.ID, &o.Tenant, &o.BusinessName, &o.Location,
			&o.Industry, &o.Issues, &o.Phone, &o.Email, &o.Contacted, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOpportunityContacted flags an opportunity after first outreach.
func (s *Store) MarkOpportunityContacted(id int64) error {
	_, err := s.DB.Exec(`UPDATE market_opportunities SET contacted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark opportunity %d contacted: %w", id, err)
	}
	return nil
}

// CreateCampaign inserts an active campaign.
func (s *Store) CreateCampaign(c *Campaign) error {
	c.Status = "active"
	c.CreatedAt = time.Now()
	res, err := s.DB.Exec(`
		INSERT INTO outreach_campaigns (name, channel, status, created_at)
		VALUES (?, ?, ?, ?)`, c.Name, c.Channel, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// EnsureCampaign returns the active campaign with the given name and
// channel, creating it on first use.
func (s *Store) EnsureCampaign(name, channel string) (*Campaign, error) {
	var c Campaign
	err := s.DB.QueryRow(`
		SELECT id, name, channel, status, sent_count, reply_count, created_at
		FROM outreach_campaigns
		WHERE name = ? AND channel = ? AND status = 'active'
		ORDER BY id LIMIT 1`, name, channel).
		Scan(&c.ID, &c.Name, &c.Channel, &c.Status, &c.SentCount, &c.ReplyCount, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup campaign %q: %w", name, err)
	}
	c = Campaign{Name: name, Channel: channel}
	if err := s.CreateCampaign(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddContact inserts a pending contact into a campaign.
func (s *Store) AddContact(c *Contact) error {
	c.Status = ContactStatusPending
	c.UpdatedAt = time.Now()
	res, err := s.DB.Exec(`
		INSERT INTO outreach_contacts (campaign_id, name, phone, email, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.CampaignID, c.Name, c.Phone, c.Email, c.Status, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// PendingContacts returns pending contacts across active campaigns on
// the given channel, oldest-first.
func (s *Store) PendingContacts(channel string, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.DB.Query(`
		SELECT ct.id, ct.campaign_id, ct.name, ct.phone, ct.email, ct.status,
			ct.last_message, ct.touch_count, ct.updated_at
		FROM outreach_contacts ct
		JOIN outreach_campaigns cp ON cp.id = ct.campaign_id
		WHERE cp.status = 'active' AND cp.channel = ? AND ct.status = ?
		ORDER BY ct.updated_at ASC LIMIT ?`,
		channel, ContactStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Name, &c.Phone, &c.Email,
			&c.Status, &c.LastMessage, &c.TouchCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SecondTouchContacts returns contacts whose single touch has gone
// unanswered past the cutoff, oldest-first. MarkContacted moves the
// touch count past one, so a contact gets at most one follow-up.
func (s *Store) SecondTouchContacts(channel string, cutoff time.Time, limit int) ([]Contact, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.DB.Query(`
		SELECT ct.id, ct.campaign_id, ct.name, ct.phone, ct.email, ct.status,
			ct.last_message, ct.touch_count, ct.updated_at
		FROM outreach_contacts ct
		JOIN outreach_campaigns cp ON cp.id = ct.campaign_id
		WHERE cp.status = 'active' AND cp.channel = ?
			AND ct.status = ? AND ct.touch_count = 1 AND ct.updated_at < ?
		ORDER BY ct.updated_at ASC LIMIT ?`,
		channel, ContactStatusContacted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list second-touch contacts: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Name, &c.Phone, &c.Email,
			&c.Status, &c.LastMessage, &c.TouchCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkContacted records an outreach touch: status, last message, touch
// count on the contact plus the campaign sent counter, atomically.
func (s *Store) MarkContacted(contactID int64, message string) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin mark contacted: %w", err)
	}
	defer tx.Rollback()

	var campaignID int64
	if err := tx.QueryRow(`SELECT campaign_id FROM outreach_contacts WHERE id = ?`, contactID).Scan(&campaignID); err != nil {
		return fmt.Errorf("lookup contact %d: %w", contactID, err)
	}
	if _, err := tx.Exec(`
		UPDATE outreach_contacts
		SET status = ?, last_message = ?, touch_count = touch_count + 1, updated_at = ?
		WHERE id = ?`,
		ContactStatusContacted, message, time.Now(), contactID); err != nil {
		return fmt.Errorf("update contact %d: %w", contactID, err)
	}
	if _, err := tx.Exec(`UPDATE outreach_campaigns SET sent_count = sent_count + 1 WHERE id = ?`, campaignID); err != nil {
		return fmt.Errorf("update campaign %d: %w", campaignID, err)
	}
	return tx.Commit()
}
