// ABOUTME: SQLite implementation core using modernc.org/sqlite
// ABOUTME: Opens the database, creates the schema, and provides shared helpers

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// The DSN carries the pragmas so every pooled connection gets them, and
	// _txlock=immediate so transactions take the write lock at BEGIN rather
	// than on first write. Deferred transactions would let two completions
	// read the same blocker snapshot and one of them lose its cascade.
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			frontmatter     TEXT NOT NULL DEFAULT '',
			tsv             TEXT NOT NULL DEFAULT '',
			embedding       BLOB,
			embedding_state TEXT NOT NULL DEFAULT 'missing',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			CHECK (embedding_state IN ('current', 'stale', 'missing'))
		);

		CREATE INDEX IF NOT EXISTS idx_agents_embedding_state
			ON agents(embedding_state);

		-- Full-text index over the normalized token column. Kept in sync
		-- manually inside the upsert/delete transactions.
		CREATE VIRTUAL TABLE IF NOT EXISTS agents_fts USING fts5(
			agent_id UNINDEXED,
			tsv
		);

		CREATE TABLE IF NOT EXISTS agent_links (
			id              TEXT PRIMARY KEY,
			source_agent_id TEXT NOT NULL REFERENCES agents(id),
			target_agent_id TEXT NOT NULL REFERENCES agents(id),
			kind            TEXT NOT NULL,
			metadata        TEXT,
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agent_links_source ON agent_links(source_agent_id);
		CREATE INDEX IF NOT EXISTS idx_agent_links_target ON agent_links(target_agent_id);

		CREATE TABLE IF NOT EXISTS traces (
			id              TEXT PRIMARY KEY,
			parent_trace_id TEXT REFERENCES traces(id),
			payload         TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_traces_parent ON traces(parent_trace_id);

		CREATE TABLE IF NOT EXISTS teams (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			lead_agent_id TEXT NOT NULL REFERENCES agents(id),
			description   TEXT,
			status        TEXT NOT NULL DEFAULT 'active',
			settings      TEXT,
			created_by    TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,

			CHECK (status IN ('active', 'archived'))
		);

		CREATE TABLE IF NOT EXISTS team_members (
			team_id   TEXT NOT NULL REFERENCES teams(id),
			agent_id  TEXT NOT NULL REFERENCES agents(id),
			role      TEXT NOT NULL DEFAULT 'member',
			joined_at TEXT NOT NULL,

			PRIMARY KEY (team_id, agent_id),
			CHECK (role IN ('lead', 'member'))
		);

		CREATE TABLE IF NOT EXISTS team_tasks (
			id             TEXT PRIMARY KEY,
			team_id        TEXT NOT NULL REFERENCES teams(id),
			subject        TEXT NOT NULL,
			description    TEXT,
			status         TEXT NOT NULL DEFAULT 'pending',
			owner_agent_id TEXT REFERENCES agents(id),
			blocked_by     TEXT NOT NULL DEFAULT '[]',
			priority       INTEGER NOT NULL DEFAULT 0,
			result         TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,

			CHECK (status IN ('pending', 'in_progress', 'completed', 'blocked'))
		);

		CREATE INDEX IF NOT EXISTS idx_team_tasks_team ON team_tasks(team_id);
		CREATE INDEX IF NOT EXISTS idx_team_tasks_owner ON team_tasks(owner_agent_id);
		CREATE INDEX IF NOT EXISTS idx_team_tasks_status ON team_tasks(team_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection is alive
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// begin starts a write transaction. The _txlock=immediate DSN option makes
// BEGIN acquire the write lock up front, so competing writers queue here,
// bounded by the busy timeout, and reads inside the transaction always see
// the latest committed state.
func (s *SQLiteStore) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatTime renders a timestamp the way every table stores it
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored RFC3339 timestamp
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Ensure SQLiteStore implements the full Store interface
var _ Store = (*SQLiteStore)(nil)
