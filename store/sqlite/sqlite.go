/*
Package sqlite provides a SQLite-backed implementation of budget.Store.

PURPOSE:
  Persists the budget state as one JSON document (the same layout the
  factory imports and exports) and mirrors every history entry into an
  append-only table, so the log survives the in-state 500 entry window.

INTERFACES IMPLEMENTED:
  budget.Store:        Load / Save of the whole state
  budget.HistoryStore: RecentHistory beyond the in-state window

KEY TABLES:
  budget_state: single row (id = 1) holding the encoded state
  history:      one row per history entry, keyed by entry ID

APPEND-ONLY HISTORY:
  Save inserts entries it has not seen (INSERT OR IGNORE on the entry ID).
  Entries evicted from the state stay in the table; nothing is updated or
  deleted except by Reset.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. budget.Service already serialises
  operations; the mutex covers direct callers such as the CLI.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/budget.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer store.Close()

  svc := budget.NewService(store)

SEE ALSO:
  - budget/store.go: Interface definitions
  - budget/store/memory.go: In-memory implementation for testing
  - factory/state.go: State document encoding
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/factory"
	"github.com/warp/budget-engine/generic"
)

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements budget.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.StateFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection, so ":memory:" is a single database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, factory: factory.NewStateFactory()}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Current state (single row)
	CREATE TABLE IF NOT EXISTS budget_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state_json TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	-- History (append-only)
	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts TEXT NOT NULL,
		kind TEXT NOT NULL,
		bucket TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_ts
		ON history(ts DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_history_kind
		ON history(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STATE STORE (budget.Store interface)
// =============================================================================

// Load returns the saved state, or nil if nothing has been saved.
func (s *Store) Load(ctx context.Context) (*budget.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT state_json FROM budget_state WHERE id = 1").Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	st, err := s.factory.ParseState([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return st, nil
}

// Save writes the state row and appends unseen history entries atomically.
func (s *Store) Save(ctx context.Context, st *budget.State) error {
	doc, err := s.factory.Encode(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(tsLayout)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_state (id, state_json, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state_json = excluded.state_json,
			saved_at = excluded.saved_at
	`, string(doc), now)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO history (id, ts, kind, bucket, amount, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range st.History {
		_, err := stmt.ExecContext(ctx,
			h.ID,
			h.Timestamp.UTC().Format(tsLayout),
			string(h.Kind),
			string(h.Bucket),
			h.Amount.String(),
			h.Details,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to append history %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// HISTORY STORE (budget.HistoryStore interface)
// =============================================================================

// RecentHistory returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) RecentHistory(ctx context.Context, n int) ([]budget.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = -1 // SQLite: no limit
	}
	return s.queryHistory(ctx, `
		SELECT id, ts, kind, bucket, amount, details
		FROM history
		ORDER BY ts DESC, seq DESC
		LIMIT ?
	`, n)
}

// HistoryByKind returns up to n entries of one kind, newest first.
func (s *Store) HistoryByKind(ctx context.Context, kind budget.HistoryKind, n int) ([]budget.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = -1
	}
	return s.queryHistory(ctx, `
		SELECT id, ts, kind, bucket, amount, details
		FROM history
		WHERE kind = ?
		ORDER BY ts DESC, seq DESC
		LIMIT ?
	`, string(kind), n)
}

// CountHistory returns the number of stored history entries.
func (s *Store) CountHistory(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&count)
	return count, err
}

func (s *Store) queryHistory(ctx context.Context, query string, args ...any) ([]budget.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []budget.HistoryEntry
	for rows.Next() {
		var (
			h              budget.HistoryEntry
			ts, kind, b, a string
		)
		if err := rows.Scan(&h.ID, &ts, &kind, &b, &a, &h.Details); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.Timestamp, _ = time.Parse(tsLayout, ts)
		h.Kind = budget.HistoryKind(kind)
		h.Bucket = budget.Bucket(b)
		h.Amount, err = generic.ParseMoney(a)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", h.ID, err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"history", "budget_state"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
