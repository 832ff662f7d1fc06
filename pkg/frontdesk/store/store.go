// Package store provides SQLite persistence for leads, escalations,
// agent runs and outreach records. The UI layer reads this state; only
// the automation core writes it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database connection.
type Store struct {
	DB *sql.DB
}

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// Open opens or creates the database and applies pending migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/frontdesk.db"
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5000
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON",
		cfg.Path, cfg.JournalMode, cfg.BusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// migration is one schema change, applied in order.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			job_type TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			urgency TEXT NOT NULL DEFAULT '',
			preferred_date TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			has_photos INTEGER NOT NULL DEFAULT 0,
			source TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
		CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone);
	`},
	{2, `
		CREATE TABLE IF NOT EXISTS escalation_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reason TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL,
			call_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);
	`},
	{3, `
		CREATE TABLE IF NOT EXISTS agent_runs (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			result TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_agent_runs_agent ON agent_runs(agent, started_at);
	`},
	{4, `
		CREATE TABLE IF NOT EXISTS market_opportunities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant TEXT NOT NULL,
			business_name TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			industry TEXT NOT NULL DEFAULT '',
			issues TEXT NOT NULL DEFAULT '',
			contacted INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(tenant, business_name)
		);
	`},
	{5, `
		CREATE TABLE IF NOT EXISTS outreach_campaigns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			sent_count INTEGER NOT NULL DEFAULT 0,
			reply_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS outreach_contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			campaign_id INTEGER NOT NULL REFERENCES outreach_campaigns(id),
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			last_message TEXT NOT NULL DEFAULT '',
			touch_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_campaign ON outreach_contacts(campaign_id, status);
	`},
	{6, `
		ALTER TABLE market_opportunities ADD COLUMN phone TEXT NOT NULL DEFAULT '';
		ALTER TABLE market_opportunities ADD COLUMN email TEXT NOT NULL DEFAULT '';
	`},
}

// migrate applies pending migrations inside a schema_version table.
func (s *Store) migrate() error {
	if _, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current := 0
	row := s.DB.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.DB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
