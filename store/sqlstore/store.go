/*
Package sqlstore provides the SQL-backed implementation of crm.Store and
crm.ClaimStore.

PURPOSE:
  Persists every CRM record through sqlx. The same queries run on SQLite
  (development, tests) and PostgreSQL (production); placeholders are written
  as "?" and rebound for the active driver.

DRIVERS:
  sqlite3:  mattn/go-sqlite3, opened with foreign keys and WAL. A single
            connection is kept so ":memory:" databases survive between calls
            and writes are serialised.
  postgres: lib/pq, pooled.

KEY TABLES:
  users, accounts, contacts, leads, deals: owned records (owner_id)
  recurring_payments: payment schedules; the next due date is never stored
  tasks:              to-do items, optionally assigned by a user
  reminder_claims:    one row per (schedule, occurrence) reminder sent

STORAGE FORMATS:
  Calendar dates are TEXT "YYYY-MM-DD"; money is TEXT decimal so no float
  ever touches an amount; created_at is a TIMESTAMP.

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper migration
  tool with versioned migrations.

USAGE:
  store, err := sqlstore.Open("sqlite3", "./data/crm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - crm/store.go: interface definitions
  - tables.go:    generic CRUD over the record tables
*/
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements crm.Store and crm.ClaimStore.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and migrates the schema. driver is "sqlite3"
// or "postgres". Use ":memory:" as the sqlite3 DSN for an in-memory database.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3":
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on&_journal_mode=WAL"
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'standard',
		emp_code TEXT NOT NULL UNIQUE,
		manager_emp_code TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_manager
		ON users(manager_emp_code);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		industry TEXT NOT NULL,
		billing_street TEXT NOT NULL,
		billing_city TEXT NOT NULL,
		billing_state TEXT NOT NULL,
		billing_code TEXT NOT NULL,
		billing_country TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		company TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		probability INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	-- Owner-scoped listings are the hot path
	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_leads_owner ON leads(owner_id);
	CREATE INDEX IF NOT EXISTS idx_deals_owner_due ON deals(owner_id, due_date);

	CREATE TABLE IF NOT EXISTS recurring_payments (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		deal_id TEXT NOT NULL REFERENCES deals(id),
		amount TEXT NOT NULL,
		period_months INTEGER NOT NULL CHECK (period_months >= 1),
		first_payment_date TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TEXT,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	-- One reminder per schedule occurrence
	CREATE TABLE IF NOT EXISTS reminder_claims (
		schedule_id TEXT NOT NULL REFERENCES recurring_payments(id) ON DELETE CASCADE,
		occurrence TEXT NOT NULL,
		claimed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (schedule_id, occurrence)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"reminder_claims", "recurring_payments", "tasks",
		"deals", "leads", "contacts", "accounts", "users",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
