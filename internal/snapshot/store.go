// Package snapshot persists fetched record sets as immutable, timestamped
// JSON files so later runs can compute adoption trends from history.
//
// Layout is an append-only tree, one file per capture:
//
//	<root>/
//	  <project>/
//	    <source>/
//	      20240117T083045.123456789Z.json
//
// File names carry the UTC capture stamp at nanosecond precision, so
// lexicographic order equals chronological order and windowed reads never
// need an index.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	trackerrs "github.com/qaops/migratrack/internal/errors"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/observability"
	"github.com/qaops/migratrack/internal/tracker"
)

const (
	stampLayout = "20060102T150405.000000000Z"
	fileSuffix  = ".json"
)

// Snapshot is one immutable capture of records for a (project, source) pair.
// It is created once at write time and never updated.
type Snapshot struct {
	ID         string               `json:"id"`
	Project    string               `json:"project"`
	Source     string               `json:"source"`
	CapturedAt time.Time            `json:"captured_at"`
	Records    []tracker.TestRecord `json:"records"`

	// Path is where the unit lives on disk. Not part of the persisted format.
	Path string `json:"-"`
}

// Count returns the number of records in the capture.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Store reads and writes snapshots under a root directory.
type Store struct {
	root  string
	mu    sync.RWMutex
	clock clockwork.Clock
}

// Option configures optional store behavior.
type Option func(*Store)

// WithClock replaces the wall clock, used by tests to control capture stamps.
func WithClock(clk clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clk
	}
}

// NewStore creates a snapshot store rooted at root, creating the directory
// if needed.
func NewStore(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, trackerrs.ConfigRequired("snapshots.directory")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, trackerrs.StorageFailed("create snapshot root", err)
	}
	s := &Store{
		root:  root,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Write persists one capture for (project, source) and returns its handle.
// The write is atomic: data lands in a temp file first and is renamed into
// place, so a failure never corrupts previously written units.
func (s *Store) Write(ctx context.Context, project, source string, records []tracker.TestRecord) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dir(project, source)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, trackerrs.StorageFailed("create snapshot directory", err)
	}

	snap := &Snapshot{
		ID:         uuid.NewString(),
		Project:    project,
		Source:     source,
		CapturedAt: s.clock.Now().UTC(),
		Records:    append([]tracker.TestRecord(nil), records...),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, trackerrs.StorageFailed("encode snapshot", err)
	}

	// A held mutex plus nanosecond stamps makes collisions unlikely, but a
	// coarse or frozen clock can repeat a stamp. Bump until the name is free.
	target := filepath.Join(dir, snap.CapturedAt.Format(stampLayout)+fileSuffix)
	for {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		snap.CapturedAt = snap.CapturedAt.Add(time.Nanosecond)
		target = filepath.Join(dir, snap.CapturedAt.Format(stampLayout)+fileSuffix)
	}

	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return nil, trackerrs.StorageFailed("write snapshot", err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return nil, trackerrs.StorageFailed("finalize snapshot", err)
	}
	snap.Path = target

	observability.DebugContext(ctx, "Snapshot written",
		logfields.Project(project),
		logfields.Source(source),
		logfields.Records(snap.Count()),
		logfields.Path(target))
	return snap, nil
}

// Read returns the snapshots for (project, source) captured within the last
// sinceDays days, ascending by capture time. A non-positive sinceDays returns
// all units. A missing location yields an empty result, not an error, and a
// corrupt unit is skipped with a warning so healthy units still load.
func (s *Store) Read(ctx context.Context, project, source string, sinceDays int) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := s.dir(project, source)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trackerrs.StorageFailed("list snapshots", err)
	}

	var cutoff time.Time
	if sinceDays > 0 {
		cutoff = s.clock.Now().UTC().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	}

	var snaps []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		snap, err := readUnit(path)
		if err != nil {
			observability.WarnContext(ctx, "Skipping corrupt snapshot",
				logfields.Path(path),
				logfields.Error(err))
			continue
		}
		// Sanitized directory names can collide across distinct raw keys, so
		// the payload's own project and source are the isolation authority.
		if snap.Project != project || snap.Source != source {
			continue
		}
		if !cutoff.IsZero() && snap.CapturedAt.Before(cutoff) {
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})
	return snaps, nil
}

// Latest returns the most recent snapshot for (project, source), or nil when
// none exist.
func (s *Store) Latest(ctx context.Context, project, source string) (*Snapshot, error) {
	snaps, err := s.Read(ctx, project, source, 0)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[len(snaps)-1], nil
}

func (s *Store) dir(project, source string) string {
	return filepath.Join(s.root, sanitizeSegment(project), sanitizeSegment(source))
}

func readUnit(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is store-internal, built from sanitized segments
	if err != nil {
		return nil, fmt.Errorf("read unit: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	snap.Path = path
	return &snap, nil
}

// sanitizeSegment maps an arbitrary key to a single safe path segment.
// Anything outside [A-Za-z0-9._-] becomes an underscore, and dot-only names
// are rewritten so hostile keys can never traverse out of the store root.
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}
