// Package history implements the durable, paginated, filterable log of
// upload attempts: a single-file embedded SQL store with transactional
// per-record mutation, a global write-serialisation point for
// retry-driven result patches, and a process-wide cache-invalidation event
// bus. Storage and migration wiring is grounded on the sync state
// tracker's state.go/migrations.go/ledger.go trio; the durable-log shape
// itself (one row per completed unit of work, JSON-blob result column,
// paginated listing) is new to this domain.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the history store. It owns two *sql.DB handles onto the same
// single-file SQLite database — one capped to a single connection and used
// exclusively by the writer goroutine (serialize.go), one left unbounded
// for concurrent reads — so that a read never blocks behind an in-flight
// write's held connection, per §4.5's "reads are never blocked on writes".
// WAL mode (set in the shared DSN) is what makes a concurrent reader and
// writer safe against the same file.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
	logger  *slog.Logger

	writes   chan writeJob
	stopOnce chan struct{}

	subscribers []EventSink
}

// EventSink receives history-updated / history-deleted notifications.
type EventSink func(event Event)

// Event is one process-wide cache-invalidation notification.
type Event struct {
	Kind EventKind
	ID   string
}

// EventKind distinguishes update from delete notifications.
type EventKind int

const (
	EventUpdated EventKind = iota
	EventDeleted
)

// Open opens (creating if absent) the SQLite database at path, sets WAL
// pragmas for durability, and applies pending migrations via goose. Use
// ":memory:" for tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	// An unadorned ":memory:" filename gives each *sql.DB its own private
	// database, which would leave the read handle pointed at an empty
	// store. cache=shared lets the read and write handles below share one
	// in-memory database as long as the single-connection write handle
	// keeps it alive.
	if path == ":memory:" {
		dsn += "&cache=shared"
	}

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening write database: %w", err)
	}

	// A single-writer connection avoids SQLITE_BUSY under the store's own
	// write serialisation.
	writeDB.SetMaxOpenConns(1)

	if err := runMigrations(ctx, writeDB, logger); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("history: opening read database: %w", err)
	}

	s := &Store{
		readDB:   readDB,
		writeDB:  writeDB,
		logger:   logger,
		writes:   make(chan writeJob, 32),
		stopOnce: make(chan struct{}),
	}

	go s.runWriter()

	return s, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("history: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close stops the write-serialisation goroutine and closes both database
// handles.
func (s *Store) Close() error {
	close(s.stopOnce)

	writeErr := s.writeDB.Close()
	readErr := s.readDB.Close()

	if writeErr != nil {
		return writeErr
	}

	return readErr
}

// Subscribe registers sink to receive future Events. Subscriptions are not
// removable — callers hold a Store for the subscriber's full lifetime.
func (s *Store) Subscribe(sink EventSink) {
	s.subscribers = append(s.subscribers, sink)
}

func (s *Store) publish(event Event) {
	for _, sink := range s.subscribers {
		sink(event)
	}
}
