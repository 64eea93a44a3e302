package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/pipeline"
)

// testSource serves a single page of n records in the shared wire format.
func testSource(t *testing.T, prefix string, n int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		type rec struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		tests := make([]rec, n)
		for i := range tests {
			tests[i] = rec{ID: fmt.Sprintf("%s-%d", prefix, i+1), Status: "active"}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"tests": tests, "total": n}); err != nil {
			t.Errorf("encode page: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func daemonConfig(t *testing.T, primaryURL, secondaryURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Version:  "1.0",
		Projects: []string{"PAY"},
		Sources: config.SourcesConfig{
			Primary:   config.SourceConfig{BaseURL: primaryURL},
			Secondary: config.SourceConfig{BaseURL: secondaryURL},
		},
		Fetch: config.FetchConfig{
			Timeout:      "2s",
			MaxAttempts:  1,
			InitialDelay: "10ms",
			MaxDelay:     "20ms",
			MaxRecords:   1000,
		},
		Snapshots: config.SnapshotsConfig{Directory: t.TempDir()},
		History:   config.HistoryConfig{Path: ":memory:"},
		Trend:     config.TrendConfig{WindowDays: 30, Samples: 7},
		Daemon: &config.DaemonConfig{
			Interval:    "1h",
			HTTPAddr:    "127.0.0.1:0",
			MetricsPath: "/metrics",
			HealthPath:  "/healthz",
		},
	}
}

func TestNewRequiresDaemonSection(t *testing.T) {
	_, err := New(nil, "")
	require.Error(t, err)

	cfg := daemonConfig(t, "http://primary.test", "http://secondary.test")
	cfg.Daemon = nil
	_, err = New(cfg, "")
	require.Error(t, err)
}

func TestDaemonLifecycle(t *testing.T) {
	primary := testSource(t, "LEG", 10)
	secondary := testSource(t, "NEW", 4)

	d, err := New(daemonConfig(t, primary.URL, secondary.URL), "")
	require.NoError(t, err)
	require.Equal(t, StatusStopped, d.GetStatus())

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx) //nolint:errcheck
	require.Equal(t, StatusRunning, d.GetStatus())

	// The first tracking run fires immediately.
	require.Eventually(t, func() bool {
		return len(d.LastRuns()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	summary := d.LastRuns()["PAY"]
	require.Equal(t, string(pipeline.OutcomeSuccess), summary.Outcome)
	require.Equal(t, 14, summary.TotalTests)
	require.InDelta(t, 4.0/14.0, summary.AdoptionRate, 1e-9)
	require.NotEmpty(t, summary.RunID)

	require.NoError(t, d.Stop(ctx))
	require.Equal(t, StatusStopped, d.GetStatus())

	// Stop is idempotent.
	require.NoError(t, d.Stop(ctx))
}

func TestDaemonHTTPEndpoints(t *testing.T) {
	primary := testSource(t, "LEG", 6)
	secondary := testSource(t, "NEW", 6)

	d, err := New(daemonConfig(t, primary.URL, secondary.URL), "")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx) //nolint:errcheck

	require.Eventually(t, func() bool {
		return len(d.LastRuns()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	base := "http://" + d.HTTPAddr()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, HealthStatusHealthy, health.Status)
	require.Len(t, health.Checks, 2)

	metricsResp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "migratrack_run_outcomes_total")
	require.Contains(t, string(body), "migratrack_fetch_duration_seconds")

	statusResp, err := http.Get(base + "/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status statusResponse
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	require.Equal(t, StatusRunning, status.Status)
	require.Contains(t, status.Projects, "PAY")
	require.Equal(t, string(pipeline.OutcomeSuccess), status.Projects["PAY"].Outcome)
}

func TestDaemonDegradedRunIsReported(t *testing.T) {
	primary := testSource(t, "LEG", 5)

	cfg := daemonConfig(t, primary.URL, "http://127.0.0.1:1")
	d, err := New(cfg, "")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	defer d.Stop(ctx) //nolint:errcheck

	require.Eventually(t, func() bool {
		return len(d.LastRuns()) == 1
	}, 10*time.Second, 20*time.Millisecond)

	summary := d.LastRuns()["PAY"]
	require.Equal(t, string(pipeline.OutcomeDegraded), summary.Outcome)
	require.NotEmpty(t, summary.Warnings)

	health := d.PerformHealthChecks()
	require.Equal(t, HealthStatusDegraded, health.Status)
}

func TestReloadConfigSkipsUnchangedFingerprint(t *testing.T) {
	primary := testSource(t, "LEG", 2)
	secondary := testSource(t, "NEW", 2)

	cfg := daemonConfig(t, primary.URL, secondary.URL)
	d, err := New(cfg, "")
	require.NoError(t, err)

	before := d.assembly
	require.NoError(t, d.ReloadConfig(context.Background(), cfg))
	require.Same(t, before, d.assembly)
}

func TestReloadConfigSwapsPipeline(t *testing.T) {
	primary := testSource(t, "LEG", 2)
	secondary := testSource(t, "NEW", 2)

	cfg := daemonConfig(t, primary.URL, secondary.URL)
	d, err := New(cfg, "")
	require.NoError(t, err)

	newCfg := daemonConfig(t, primary.URL, secondary.URL)
	newCfg.Snapshots.Directory = t.TempDir()
	newCfg.Trend.WindowDays = 60

	before := d.assembly
	require.NoError(t, d.ReloadConfig(context.Background(), newCfg))
	require.NotSame(t, before, d.assembly)
	require.Equal(t, 60, d.GetConfig().Trend.WindowDays)
}

func TestReloadConfigRejectsBrokenConfig(t *testing.T) {
	primary := testSource(t, "LEG", 2)
	secondary := testSource(t, "NEW", 2)

	cfg := daemonConfig(t, primary.URL, secondary.URL)
	d, err := New(cfg, "")
	require.NoError(t, err)

	broken := daemonConfig(t, primary.URL, secondary.URL)
	broken.Snapshots.Directory = "" // different fingerprint, unusable store
	broken.Sources.Primary.BaseURL = ""

	before := d.assembly
	require.Error(t, d.ReloadConfig(context.Background(), broken))
	require.Same(t, before, d.assembly)
	require.Equal(t, cfg, d.GetConfig())
}

func TestHealthChecksBeforeFirstRun(t *testing.T) {
	primary := testSource(t, "LEG", 2)
	secondary := testSource(t, "NEW", 2)

	d, err := New(daemonConfig(t, primary.URL, secondary.URL), "")
	require.NoError(t, err)

	// Not started: lifecycle unhealthy, no runs yet.
	health := d.PerformHealthChecks()
	require.Equal(t, HealthStatusUnhealthy, health.Status)

	rec := httptest.NewRecorder()
	d.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
