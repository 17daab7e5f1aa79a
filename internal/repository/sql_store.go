package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"ledger-recon/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// dialect covers the few places PostgreSQL and SQLite differ. Both accept
// $n placeholders and ON CONFLICT upserts. SQLite numbers $n parameters by
// first appearance, so every query lists them in ascending order.
type dialect struct {
	driver    string
	timestamp string
	forUpdate string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return dialect{driver: driver, timestamp: "TIMESTAMPTZ", forUpdate: " FOR UPDATE"}, nil
	case DriverSQLite:
		// SQLite serializes writers, so a transaction already owns the rows it reads.
		return dialect{driver: driver, timestamp: "TIMESTAMP"}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// SQLStore implements every repository on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStore wraps an open database. driver is DriverPostgres or DriverSQLite.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// OpenSQLite opens a SQLite database and migrates it. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	dsn := path + "?_foreign_keys=on"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(db, DriverSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Staging tables mirror the production journal
// tables and are namespaced by session id.
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := strings.ReplaceAll(schemaTemplate, "{{ts}}", s.dialect.timestamp)
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to apply schema statement")
			return err
		}
	}
	return nil
}

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	parent_code TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at {{ts}} NOT NULL,
	UNIQUE (tenant_id, code)
);

CREATE TABLE IF NOT EXISTS mapping_rules (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	pattern TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	account_id TEXT NOT NULL,
	account_code TEXT NOT NULL,
	priority INTEGER NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	vendor TEXT NOT NULL DEFAULT '',
	match_count INTEGER NOT NULL DEFAULT 0,
	last_matched {{ts}},
	source TEXT NOT NULL,
	created_at {{ts}} NOT NULL,
	updated_at {{ts}} NOT NULL,
	UNIQUE (tenant_id, pattern, pattern_type)
);

CREATE INDEX IF NOT EXISTS idx_mapping_rules_active
	ON mapping_rules (tenant_id, is_active, priority, id);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	current_balance TEXT NOT NULL DEFAULT '0',
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_entities_tenant_kind
	ON entities (tenant_id, kind, is_active, name, id);

CREATE TABLE IF NOT EXISTS outstanding_documents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	number TEXT NOT NULL DEFAULT '',
	amount_due TEXT NOT NULL,
	issue_date {{ts}},
	due_date {{ts}},
	status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outstanding_documents_entity
	ON outstanding_documents (tenant_id, entity_id, status);

CREATE TABLE IF NOT EXISTS import_sessions (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	staged_entries INTEGER NOT NULL DEFAULT 0,
	staged_lines INTEGER NOT NULL DEFAULT 0,
	promoted_entries INTEGER NOT NULL DEFAULT 0,
	promoted_lines INTEGER NOT NULL DEFAULT 0,
	created_at {{ts}} NOT NULL,
	promoted_at {{ts}}
);

CREATE TABLE IF NOT EXISTS journal_entries (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	entry_date {{ts}} NOT NULL,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_debit TEXT NOT NULL,
	total_credit TEXT NOT NULL,
	reversal_of TEXT NOT NULL DEFAULT '',
	void_reason TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	created_at {{ts}} NOT NULL,
	UNIQUE (tenant_id, source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_session
	ON journal_entries (session_id);

CREATE TABLE IF NOT EXISTS journal_lines (
	entry_id TEXT NOT NULL REFERENCES journal_entries (id),
	line_no INTEGER NOT NULL,
	account_code TEXT NOT NULL,
	account_name TEXT NOT NULL DEFAULT '',
	debit TEXT NOT NULL,
	credit TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	dimensions TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (entry_id, line_no)
);

CREATE TABLE IF NOT EXISTS balance_adjustments (
	entry_id TEXT NOT NULL REFERENCES journal_entries (id),
	seq INTEGER NOT NULL,
	entity_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	increase BOOLEAN NOT NULL,
	PRIMARY KEY (entry_id, seq)
);

CREATE TABLE IF NOT EXISTS staging_journal_entries (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES import_sessions (id),
	tenant_id TEXT NOT NULL,
	entry_date {{ts}} NOT NULL,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_debit TEXT NOT NULL,
	total_credit TEXT NOT NULL,
	reversal_of TEXT NOT NULL DEFAULT '',
	void_reason TEXT NOT NULL DEFAULT '',
	created_at {{ts}} NOT NULL,
	UNIQUE (session_id, source, source_id)
);

CREATE TABLE IF NOT EXISTS staging_journal_lines (
	entry_id TEXT NOT NULL,
	line_no INTEGER NOT NULL,
	account_code TEXT NOT NULL,
	account_name TEXT NOT NULL DEFAULT '',
	debit TEXT NOT NULL,
	credit TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	dimensions TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (entry_id, line_no)
);

CREATE TABLE IF NOT EXISTS staging_balance_adjustments (
	entry_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	entity_id TEXT NOT NULL,
	amount TEXT NOT NULL,
	increase BOOLEAN NOT NULL,
	PRIMARY KEY (entry_id, seq)
)
`

// withTx runs fn in a transaction and commits only if fn succeeds.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit transaction")
		return err
	}
	return nil
}

// isUniqueViolation reports a unique constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
