package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite journal backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxEntries is the maximum number of events retained.
	// Older events are discarded as new ones arrive.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default SQLite journal configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/usage.db",
		MaxEntries:  1000,
		BusyTimeout: 5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	request_id TEXT,
	timestamp DATETIME NOT NULL,
	operation TEXT NOT NULL,
	model TEXT,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_usage_events_timestamp ON usage_events(timestamp);
`

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	insertStmt *sql.Stmt
	trimStmt   *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteJournal creates a SQLite-backed usage journal.
// It initializes the schema and enables WAL mode.
func NewSQLiteJournal(config *SQLiteConfig) (*SQLiteJournal, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("path cannot be empty")}
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "journal.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	j := &SQLiteJournal{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("usage journal initialized",
		"path", config.Path,
		"max_entries", config.MaxEntries,
	)

	return j, nil
}

// initialize sets up the schema, pragmas, and prepared statements.
func (j *SQLiteJournal) initialize() error {
	if _, err := j.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return &StorageError{Op: "enable_wal", Err: err}
	}
	if _, err := j.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", j.config.BusyTimeout.Milliseconds())); err != nil {
		return &StorageError{Op: "set_busy_timeout", Err: err}
	}
	if _, err := j.db.Exec(schema); err != nil {
		return &StorageError{Op: "create_schema", Err: err}
	}

	var err error
	j.insertStmt, err = j.db.Prepare(`
		INSERT INTO usage_events (
			id, request_id, timestamp, operation, model,
			prompt_tokens, completion_tokens, total_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &StorageError{Op: "prepare_insert", Err: err}
	}

	// Retention trim keeps only the newest MaxEntries events.
	j.trimStmt, err = j.db.Prepare(`
		DELETE FROM usage_events WHERE id NOT IN (
			SELECT id FROM usage_events ORDER BY timestamp DESC, id DESC LIMIT ?
		)
	`)
	if err != nil {
		return &StorageError{Op: "prepare_trim", Err: err}
	}

	return nil
}

// Append stores a usage event and trims history past the retention limit.
// A missing ID or timestamp is filled in.
func (j *SQLiteJournal) Append(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return &StorageError{Op: "append", Err: errNilEntry}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := j.insertStmt.ExecContext(ctx,
		entry.ID, entry.RequestID, entry.Timestamp.UTC(), entry.Operation, entry.Model,
		entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
	)
	if err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	if _, err := j.trimStmt.ExecContext(ctx, j.config.MaxEntries); err != nil {
		// History is advisory; a failed trim only delays cleanup.
		j.logger.Warn("failed to trim usage history", "error", err)
	}

	return nil
}

// Recent returns the newest entries, most recent first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, request_id, timestamp, operation, model,
		       prompt_tokens, completion_tokens, total_tokens
		FROM usage_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var e Entry
		var requestID, model sql.NullString
		if err := rows.Scan(&e.ID, &requestID, &e.Timestamp, &e.Operation, &model,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		e.RequestID = requestID.String
		e.Model = model.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}

	return entries, nil
}

// DailyTotals returns per-day usage summaries for the last n days,
// oldest day first.
func (j *SQLiteJournal) DailyTotals(ctx context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		days = 7
	}

	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := j.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day, COUNT(*), SUM(total_tokens)
		FROM usage_events
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, &StorageError{Op: "daily_totals", Err: err}
	}
	defer rows.Close()

	summaries := []DailySummary{}
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(&s.Date, &s.Requests, &s.TotalTokens); err != nil {
			return nil, &StorageError{Op: "scan", Err: err}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "daily_totals", Err: err}
	}

	return summaries, nil
}

// Close closes the journal database. It is safe to call multiple times.
func (j *SQLiteJournal) Close() error {
	j.closeOnce.Do(func() {
		if j.insertStmt != nil {
			j.insertStmt.Close()
		}
		if j.trimStmt != nil {
			j.trimStmt.Close()
		}
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}
