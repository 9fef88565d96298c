package quota

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence.
// Counters and their window-start timestamps are stored one row per scope,
// so the state survives restarts and can be inspected with any SQLite
// client.
//
// The store uses a write-ahead log (WAL) with periodic passive checkpoints
// to balance write performance with durability.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once

	saveStmt *sql.Stmt
	loadStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite store at dbPath with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a SQLite store with custom configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go store.checkpointLoop()

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quota_counters (
		scope TEXT PRIMARY KEY,
		tokens_used INTEGER NOT NULL,
		window_start INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO quota_counters (scope, tokens_used, window_start, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scope) DO UPDATE SET
			tokens_used = excluded.tokens_used,
			window_start = excluded.window_start,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT scope, tokens_used, window_start
		FROM quota_counters
		WHERE scope IN (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load statement: %w", err)
	}

	return nil
}

// Load retrieves the persisted counter state.
// Returns nil if no counters have been saved yet.
func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadStmt.QueryContext(ctx, string(ScopeDaily), string(ScopeMonthly))
	if err != nil {
		return nil, fmt.Errorf("failed to load quota counters: %w", err)
	}
	defer rows.Close()

	var state State
	found := false

	for rows.Next() {
		var (
			scope       string
			tokensUsed  int
			windowStart int64
		)
		if err := rows.Scan(&scope, &tokensUsed, &windowStart); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		found = true
		switch Scope(scope) {
		case ScopeDaily:
			state.DailyUsed = tokensUsed
			state.DailyWindowStart = time.Unix(windowStart, 0)
		case ScopeMonthly:
			state.MonthlyUsed = tokensUsed
			state.MonthlyWindowStart = time.Unix(windowStart, 0)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if !found {
		return nil, nil
	}

	return &state, nil
}

// Save persists the counter state, one row per scope.
func (s *SQLiteStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	_, err := s.saveStmt.ExecContext(ctx,
		string(ScopeDaily), state.DailyUsed, state.DailyWindowStart.Unix(), now)
	if err != nil {
		return fmt.Errorf("failed to save daily counter: %w", err)
	}

	_, err = s.saveStmt.ExecContext(ctx,
		string(ScopeMonthly), state.MonthlyUsed, state.MonthlyWindowStart.Unix(), now)
	if err != nil {
		return fmt.Errorf("failed to save monthly counter: %w", err)
	}

	return nil
}

// Close releases the database and stops the checkpoint goroutine.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.saveStmt != nil {
			s.saveStmt.Close()
		}
		if s.loadStmt != nil {
			s.loadStmt.Close()
		}

		if s.db != nil {
			// Run final checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
