// Package integration exercises the whole tracking pipeline against fake
// source APIs: fetch with pagination and auth, snapshot persistence, cache
// behavior across runs, degraded handling and the recorded run history.
package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/qaops/migratrack/internal/adoption"
	"github.com/qaops/migratrack/internal/cache"
	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/pipeline"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/trend"
)

// integrationConfig wires both fake servers into a full configuration with
// near-zero retry delays so failure paths stay fast.
func integrationConfig(t *testing.T, primary, secondary *httptest.Server) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Version:  "1.0",
		Projects: []string{"PAY"},
		Sources: config.SourcesConfig{
			Primary: config.SourceConfig{
				Name:    "legacy-tms",
				BaseURL: primary.URL,
				Auth:    &config.AuthConfig{Type: config.AuthTypeToken, Token: "primary-token"},
			},
			Secondary: config.SourceConfig{
				Name:    "target-tms",
				BaseURL: secondary.URL,
				Auth:    &config.AuthConfig{Type: config.AuthTypeToken, Token: "secondary-token"},
			},
		},
		Fetch: config.FetchConfig{
			Timeout:      "5s",
			MaxAttempts:  3,
			Backoff:      config.RetryBackoffExponential,
			InitialDelay: "1ms",
			MaxDelay:     "5ms",
		},
		Cache:     config.CacheConfig{TTL: "5m"},
		Snapshots: config.SnapshotsConfig{Directory: filepath.Join(dir, "snapshots")},
		Trend:     config.TrendConfig{WindowDays: 30, Samples: 7},
		History:   config.HistoryConfig{Path: filepath.Join(dir, "runs.db")},
	}
	return cfg
}

func TestFullRunPersistsAndReports(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// The primary source paginates via cursor; both check bearer auth.
	primary := newFakeSource(t, fakeSourceOptions{
		records:  makeRecords("L", 7),
		pageSize: 4,
		token:    "primary-token",
	})
	defer primary.server.Close()
	secondary := newFakeSource(t, fakeSourceOptions{
		records: makeRecords("T", 3),
		token:   "secondary-token",
	})
	defer secondary.server.Close()

	cfg := integrationConfig(t, primary.server, secondary.server)
	asm, err := pipeline.Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	result := asm.Runner.Run(context.Background(), "PAY")

	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	require.Equal(t, adoption.StatusInProgress, result.Metrics.Status)
	require.Equal(t, 10, result.Metrics.TotalTests)
	require.InDelta(t, 0.3, result.Metrics.AdoptionRate, 1e-9)
	require.Empty(t, result.Warnings())

	// Cursor pagination walked both pages of the primary inventory.
	require.GreaterOrEqual(t, primary.requests(), 2)

	// One snapshot per source landed on disk, project-scoped.
	for _, role := range []string{"primary", "secondary"} {
		entries, err := os.ReadDir(filepath.Join(cfg.Snapshots.Directory, "PAY", role))
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}

	// The run is in the history log with its metrics.
	runs, err := asm.History.RecentRuns(context.Background(), "PAY", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, string(pipeline.OutcomeSuccess), runs[0].Outcome)
	require.Equal(t, 10, runs[0].TotalTests)
}

func TestSecondRunServedFromCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	primary := newFakeSource(t, fakeSourceOptions{records: makeRecords("L", 5), token: "primary-token"})
	defer primary.server.Close()
	secondary := newFakeSource(t, fakeSourceOptions{records: makeRecords("T", 5), token: "secondary-token"})
	defer secondary.server.Close()

	cfg := integrationConfig(t, primary.server, secondary.server)
	asm, err := pipeline.Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	first := asm.Runner.Run(context.Background(), "PAY")
	require.Equal(t, pipeline.OutcomeSuccess, first.Outcome)
	fetched := primary.requests()

	second := asm.Runner.Run(context.Background(), "PAY")
	require.Equal(t, pipeline.OutcomeSuccess, second.Outcome)
	for _, status := range second.Sources {
		require.Equal(t, cache.OutcomeHit, status.CacheOutcome)
	}

	// The cache absorbed the second run: no new requests, no new snapshots.
	require.Equal(t, fetched, primary.requests())
	entries, err := os.ReadDir(filepath.Join(cfg.Snapshots.Directory, "PAY", "primary"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSourceOutageDegradesOnlyThatSource(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	primary := newFakeSource(t, fakeSourceOptions{records: makeRecords("L", 7), token: "primary-token"})
	defer primary.server.Close()
	secondary := newFakeSource(t, fakeSourceOptions{
		records:   makeRecords("T", 3),
		token:     "secondary-token",
		failTimes: -1, // every request returns 500
	})
	defer secondary.server.Close()

	cfg := integrationConfig(t, primary.server, secondary.server)
	asm, err := pipeline.Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	result := asm.Runner.Run(context.Background(), "PAY")

	require.Equal(t, pipeline.OutcomeDegraded, result.Outcome)
	require.NotEmpty(t, result.Warnings())

	// The healthy source still contributes and its snapshot is written.
	require.Equal(t, 7, result.Metrics.PrimaryCount)
	require.Equal(t, 0, result.Metrics.SecondaryCount)
	entries, err := os.ReadDir(filepath.Join(cfg.Snapshots.Directory, "PAY", "primary"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Retries were attempted before giving up: 3 attempts, one request each.
	require.Equal(t, 3, secondary.requests())

	// The degradation is recorded in the run history.
	runs, err := asm.History.RecentRuns(context.Background(), "PAY", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	_, events, err := asm.History.GetByRunID(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, "source_degraded", events[0].Type)
	require.Equal(t, "secondary", events[0].Source)
}

func TestTrendSpansSeededHistoryAndFreshRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	primary := newFakeSource(t, fakeSourceOptions{records: makeRecords("L", 7), token: "primary-token"})
	defer primary.server.Close()
	secondary := newFakeSource(t, fakeSourceOptions{records: makeRecords("T", 3), token: "secondary-token"})
	defer secondary.server.Close()

	cfg := integrationConfig(t, primary.server, secondary.server)

	// Yesterday's capture sat at 10% adoption.
	yesterday := clockwork.NewFakeClockAt(time.Now().UTC().AddDate(0, 0, -1))
	seeded, err := snapshot.NewStore(cfg.Snapshots.Directory, snapshot.WithClock(yesterday))
	require.NoError(t, err)
	_, err = seeded.Write(context.Background(), "PAY", "primary", makeRecords("L", 9))
	require.NoError(t, err)
	_, err = seeded.Write(context.Background(), "PAY", "secondary", makeRecords("T", 1))
	require.NoError(t, err)

	asm, err := pipeline.Assemble(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer asm.Close()

	// Today's run lands at 30%, so the two-day trend climbs 20pp/day.
	result := asm.Runner.Run(context.Background(), "PAY")
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)

	require.Equal(t, trend.DirectionIncreasing, result.Trend.Direction)
	require.InDelta(t, 0.2, result.Trend.DailyChange, 1e-9)
	require.NotNil(t, result.Trend.ProjectedCompletion)

	// ceil((1 - 0.3) / 0.2) = 4 days out.
	wantCompletion := time.Now().UTC().Add(4 * 24 * time.Hour)
	require.WithinDuration(t, wantCompletion, *result.Trend.ProjectedCompletion, time.Minute)
}
