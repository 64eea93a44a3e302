// Package history keeps an append-only run log in SQLite: one row per
// pipeline run plus any noteworthy events (degraded sources, stale cache
// serves, truncated fetches) that happened during it. The CLI reads it for
// `migratrack history`; nothing in the core depends on it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	trackerrs "github.com/qaops/migratrack/internal/errors"
)

// Event types recorded alongside runs.
const (
	EventSourceDegraded   = "source_degraded"
	EventStaleCacheServed = "stale_cache_served"
	EventFetchTruncated   = "fetch_truncated"
	EventSnapshotFailed   = "snapshot_write_failed"
)

// Run is one completed pipeline run for a project.
type Run struct {
	RunID          string
	Project        string
	StartedAt      time.Time
	Duration       time.Duration
	Outcome        string
	Status         string
	AdoptionRate   float64
	TotalTests     int
	PrimaryCount   int
	SecondaryCount int
}

// Event is one noteworthy happening within a run.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Source    string
	Message   string
	CreatedAt time.Time
}

// Store persists runs and their events.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a run log at path, initializing the schema if needed.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, trackerrs.ConfigRequired("history.path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, trackerrs.StorageFailed("open run log", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, trackerrs.StorageFailed("initialize run log schema", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		project TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		status TEXT NOT NULL,
		adoption_rate REAL NOT NULL,
		total_tests INTEGER NOT NULL,
		primary_count INTEGER NOT NULL,
		secondary_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		source TEXT,
		message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendRun records a completed run and its events in one transaction.
func (s *Store) AppendRun(ctx context.Context, run Run, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return trackerrs.StorageFailed("begin run append", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs
		 (run_id, project, started_at, duration_ms, outcome, status, adoption_rate, total_tests, primary_count, secondary_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Project, run.StartedAt.Unix(), run.Duration.Milliseconds(),
		run.Outcome, run.Status, run.AdoptionRate, run.TotalTests, run.PrimaryCount, run.SecondaryCount,
	)
	if err != nil {
		return trackerrs.StorageFailed("insert run", err)
	}

	for _, event := range events {
		createdAt := event.CreatedAt
		if createdAt.IsZero() {
			createdAt = run.StartedAt
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO run_events (run_id, event_type, source, message, created_at) VALUES (?, ?, ?, ?, ?)",
			run.RunID, event.Type, event.Source, event.Message, createdAt.Unix(),
		)
		if err != nil {
			return trackerrs.StorageFailed("insert run event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return trackerrs.StorageFailed("commit run append", err)
	}
	return nil
}

// GetByRunID retrieves one run and its events. A missing run returns
// (nil, nil, nil) so callers can distinguish absence from failure.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Run, []Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, project, started_at, duration_ms, outcome, status, adoption_rate, total_tests, primary_count, secondary_count
		 FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, trackerrs.StorageFailed("query run", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, event_type, source, message, created_at FROM run_events WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, nil, trackerrs.StorageFailed("query run events", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, nil, trackerrs.StorageFailed("scan run events", err)
	}
	return run, events, nil
}

// GetRange retrieves runs started within [start, end], oldest first.
func (s *Store) GetRange(ctx context.Context, start, end time.Time) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, project, started_at, duration_ms, outcome, status, adoption_rate, total_tests, primary_count, secondary_count
		 FROM runs WHERE started_at >= ? AND started_at <= ? ORDER BY started_at, id`,
		start.Unix(), end.Unix())
	if err != nil {
		return nil, trackerrs.StorageFailed("query run range", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// RecentRuns retrieves the latest runs, newest first. An empty project
// matches all projects.
func (s *Store) RecentRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	query := `SELECT run_id, project, started_at, duration_ms, outcome, status, adoption_rate, total_tests, primary_count, secondary_count
	 FROM runs`
	args := []any{}
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, trackerrs.StorageFailed("query recent runs", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedUnix, durationMS int64
	err := row.Scan(&run.RunID, &run.Project, &startedUnix, &durationMS,
		&run.Outcome, &run.Status, &run.AdoptionRate, &run.TotalTests,
		&run.PrimaryCount, &run.SecondaryCount)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(startedUnix, 0).UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, trackerrs.StorageFailed("scan run", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, trackerrs.StorageFailed("iterate runs", err)
	}
	return runs, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var event Event
		var createdUnix int64
		if err := rows.Scan(&event.ID, &event.RunID, &event.Type, &event.Source, &event.Message, &createdUnix); err != nil {
			return nil, err
		}
		event.CreatedAt = time.Unix(createdUnix, 0).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
