package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/history"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/tracker"
)

// resetCLI restores the global flag state after a test mutated it.
func resetCLI(t *testing.T) {
	t.Helper()
	saved := CLI
	t.Cleanup(func() { CLI = saved })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Version:  "1.0",
		Projects: []string{"PAY", "CHECKOUT"},
		Sources: config.SourcesConfig{
			Primary:   config.SourceConfig{Name: "legacy", BaseURL: "http://primary.test"},
			Secondary: config.SourceConfig{Name: "target", BaseURL: "http://secondary.test"},
		},
		Snapshots: config.SnapshotsConfig{Directory: filepath.Join(t.TempDir(), "snaps")},
		Trend:     config.TrendConfig{WindowDays: 30, Samples: 7},
		History:   config.HistoryConfig{Path: ":memory:"},
		Output:    config.OutputConfig{Format: config.FormatTable, Directory: t.TempDir()},
	}
}

func makeRecords(prefix string, n int) []tracker.TestRecord {
	records := make([]tracker.TestRecord, n)
	for i := range records {
		records[i] = tracker.TestRecord{ID: fmt.Sprintf("%s-%d", prefix, i+1), Status: "active"}
	}
	return records
}

// seedSnapshots writes one primary+secondary capture pair per day described
// by counts, ending the given number of days before now.
func seedSnapshots(t *testing.T, dir, project string, counts [][2]int, endDaysAgo int) {
	t.Helper()

	start := time.Now().UTC().AddDate(0, 0, -(endDaysAgo + len(counts) - 1))
	for i, pair := range counts {
		clk := clockwork.NewFakeClockAt(start.AddDate(0, 0, i))
		store, err := snapshot.NewStore(dir, snapshot.WithClock(clk))
		require.NoError(t, err)

		_, err = store.Write(context.Background(), project, string(config.RolePrimary), makeRecords("L", pair[0]))
		require.NoError(t, err)
		_, err = store.Write(context.Background(), project, string(config.RoleSecondary), makeRecords("T", pair[1]))
		require.NoError(t, err)
	}
}

func TestResolveProjects(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name     string
		selected string
		want     []string
		wantErr  bool
	}{
		{name: "all configured when empty", selected: "", want: []string{"PAY", "CHECKOUT"}},
		{name: "single configured project", selected: "CHECKOUT", want: []string{"CHECKOUT"}},
		{name: "unknown project rejected", selected: "NOPE", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveProjects(cfg, tt.selected)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "not configured")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOutputFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Format = config.FormatMarkdown

	format, err := outputFormat(cfg, "")
	require.NoError(t, err)
	require.Equal(t, config.FormatMarkdown, format)

	format, err = outputFormat(cfg, "json")
	require.NoError(t, err)
	require.Equal(t, config.FormatJSON, format)

	_, err = outputFormat(cfg, "xml")
	require.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	tests := []struct {
		format config.OutputFormat
		want   string
	}{
		{config.FormatTable, "txt"},
		{config.FormatJSON, "json"},
		{config.FormatCSV, "csv"},
		{config.FormatMarkdown, "md"},
		{config.FormatHTML, "html"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatExtension(tt.format))
	}
}

func TestInitThenLoadRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "migratrack.yaml")
	t.Setenv("MIGRATRACK_PRIMARY_TOKEN", "primary-secret")
	t.Setenv("MIGRATRACK_SECONDARY_TOKEN", "secondary-secret")

	require.NoError(t, config.Init(configPath, false))

	// A second init without force must refuse to overwrite.
	err := config.Init(configPath, false)
	require.Error(t, err)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, []string{"PAY", "CHECKOUT"}, cfg.Projects)
	require.Equal(t, "primary-secret", cfg.Sources.Primary.Auth.Token)
	require.Equal(t, 3, cfg.Fetch.MaxAttempts)
	require.Equal(t, config.FormatTable, cfg.Output.Format)
}

func TestRunTrendFromStoredSnapshots(t *testing.T) {
	resetCLI(t)
	cfg := testConfig(t)

	// Two daily samples: 10% then 30% adoption.
	seedSnapshots(t, cfg.Snapshots.Directory, "PAY", [][2]int{{9, 1}, {7, 3}}, 1)

	var out bytes.Buffer
	require.NoError(t, runTrend(context.Background(), cfg, "PAY", &out))

	rendered := out.String()
	require.Contains(t, rendered, "Adoption trend")
	require.Contains(t, rendered, "increasing")
	require.Contains(t, rendered, "30.0%")
}

func TestRunTrendEmptyStore(t *testing.T) {
	resetCLI(t)
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, runTrend(context.Background(), cfg, "PAY", &out))
	require.Contains(t, out.String(), "insufficient_data")
}

func TestRunReportCachedFromSnapshots(t *testing.T) {
	resetCLI(t)
	CLI.Report.Cached = true

	cfg := testConfig(t)
	seedSnapshots(t, cfg.Snapshots.Directory, "PAY", [][2]int{{9, 1}, {7, 3}}, 1)

	var out bytes.Buffer
	require.NoError(t, runReport(context.Background(), cfg, "PAY", &out))

	rendered := out.String()
	require.Contains(t, rendered, "Migration report")
	require.Contains(t, rendered, "in_progress")
	require.Contains(t, rendered, "30.0%")
}

func TestRunReportWritesFile(t *testing.T) {
	resetCLI(t)
	CLI.Report.Cached = true
	CLI.Report.Write = true
	CLI.Report.Format = "json"

	cfg := testConfig(t)
	seedSnapshots(t, cfg.Snapshots.Directory, "PAY", [][2]int{{7, 3}}, 0)

	var out bytes.Buffer
	require.NoError(t, runReport(context.Background(), cfg, "PAY", &out))
	require.Contains(t, out.String(), "Report written to ")

	entries, err := os.ReadDir(cfg.Output.Directory)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "PAY-"))
	require.True(t, strings.HasSuffix(entries[0].Name(), ".json"))

	data, err := os.ReadFile(filepath.Join(cfg.Output.Directory, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), `"adoption_rate": 0.3`)
}

func TestRunHistoryListsRuns(t *testing.T) {
	resetCLI(t)
	cfg := testConfig(t)
	cfg.History.Path = filepath.Join(t.TempDir(), "runs.db")

	store, err := history.Open(cfg.History.Path)
	require.NoError(t, err)
	run := history.Run{
		RunID:          "11111111-2222-3333-4444-555555555555",
		Project:        "PAY",
		StartedAt:      time.Now().UTC(),
		Duration:       1500 * time.Millisecond,
		Outcome:        "degraded",
		Status:         "in_progress",
		AdoptionRate:   0.3,
		TotalTests:     10,
		PrimaryCount:   7,
		SecondaryCount: 3,
	}
	events := []history.Event{{
		RunID:   run.RunID,
		Type:    history.EventSourceDegraded,
		Source:  "secondary",
		Message: "connection refused",
	}}
	require.NoError(t, store.AppendRun(context.Background(), run, events))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), cfg, "PAY", &out))
	rendered := out.String()
	require.Contains(t, rendered, "11111111")
	require.Contains(t, rendered, "degraded")

	// Detail view includes the recorded events.
	CLI.History.Run = run.RunID
	out.Reset()
	require.NoError(t, runHistory(context.Background(), cfg, "", &out))
	rendered = out.String()
	require.Contains(t, rendered, run.RunID)
	require.Contains(t, rendered, history.EventSourceDegraded)
	require.Contains(t, rendered, "connection refused")
}

func TestRunHistoryDisabled(t *testing.T) {
	resetCLI(t)
	cfg := testConfig(t)
	disabled := false
	cfg.History.Enabled = &disabled

	var out bytes.Buffer
	err := runHistory(context.Background(), cfg, "", &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disabled")
}

func TestShortRunID(t *testing.T) {
	require.Equal(t, "11111111", shortRunID("11111111-2222-3333-4444-555555555555"))
	require.Equal(t, "short", shortRunID("short"))
}
