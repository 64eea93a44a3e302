// Package daemon runs the tracking pipeline continuously: scheduled runs for
// every configured project, a small HTTP surface for metrics and health, and
// live configuration reloads driven by file watching.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qaops/migratrack/internal/config"
	trackerrs "github.com/qaops/migratrack/internal/errors"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/metrics"
	"github.com/qaops/migratrack/internal/pipeline"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// RunSummary is the retained outcome of the most recent run for a project,
// served by the status endpoint.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Project      string    `json:"project"`
	Outcome      string    `json:"outcome"`
	Status       string    `json:"status"`
	AdoptionRate float64   `json:"adoption_rate"`
	TotalTests   int       `json:"total_tests"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMS   int64     `json:"duration_ms"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Daemon owns the long-running tracking service: the pipeline assembly, the
// run scheduler, the HTTP server and the config watcher.
type Daemon struct {
	mu         sync.RWMutex
	status     atomic.Value // Status
	startTime  time.Time
	configPath string

	cfg         *config.Config
	fingerprint string

	registry *prometheus.Registry
	recorder metrics.Recorder

	assembly  *pipeline.Assembly
	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *httpServer

	// runCtx bounds in-flight pipeline runs; canceled on Stop so retry
	// backoff does not hold up shutdown.
	runCtx    context.Context
	runCancel context.CancelFunc

	lastRuns map[string]RunSummary
}

// New builds a daemon from a loaded configuration. configPath enables config
// file watching when non-empty.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, trackerrs.ConfigRequired("config")
	}
	if cfg.Daemon == nil {
		return nil, trackerrs.ConfigRequired("daemon")
	}

	registry := prometheus.NewRegistry()
	d := &Daemon{
		configPath:  configPath,
		cfg:         cfg,
		fingerprint: cfg.Fingerprint(),
		registry:    registry,
		recorder:    metrics.NewPrometheusRecorder(registry),
		lastRuns:    make(map[string]RunSummary),
	}
	d.status.Store(StatusStopped)

	asm, err := pipeline.Assemble(context.Background(), cfg, d.recorder)
	if err != nil {
		return nil, err
	}
	d.assembly = asm

	scheduler, err := NewScheduler()
	if err != nil {
		asm.Close() //nolint:errcheck
		return nil, err
	}
	d.scheduler = scheduler

	if cfg.Daemon.HTTPAddr != "" {
		d.server = newHTTPServer(d, cfg.Daemon)
	}

	if configPath != "" {
		watcher, err := NewConfigWatcher(configPath, d)
		if err != nil {
			asm.Close() //nolint:errcheck
			return nil, err
		}
		d.watcher = watcher
	}

	return d, nil
}

// Start brings up the HTTP server, schedules periodic runs and begins
// watching the config file. The first tracking run fires immediately.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() != StatusStopped {
		return trackerrs.ValidationFailed("daemon", fmt.Sprintf("not in stopped state: %s", d.GetStatus()))
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.runCtx, d.runCancel = context.WithCancel(context.Background())

	if d.server != nil {
		if err := d.server.Start(ctx); err != nil {
			d.status.Store(StatusError)
			return err
		}
	}

	interval := d.cfg.Daemon.IntervalDuration()
	if _, err := d.scheduler.SchedulePeriodicRuns(interval, d.trackAll); err != nil {
		d.status.Store(StatusError)
		return err
	}
	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			// Watching is best-effort: the daemon still runs, just without
			// live reloads.
			slog.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon started",
		slog.Int("projects", len(d.cfg.Projects)),
		slog.Duration("interval", interval),
		slog.String("http_addr", d.cfg.Daemon.HTTPAddr))
	return nil
}

// Stop shuts components down in reverse start order and waits for in-flight
// runs to finish. The context bounds the HTTP server drain.
func (d *Daemon) Stop(ctx context.Context) error {
	for {
		current := d.GetStatus()
		if current == StatusStopped || current == StatusStopping {
			return nil
		}
		if d.status.CompareAndSwap(current, StatusStopping) {
			break
		}
	}
	slog.Info("Stopping daemon")

	d.mu.Lock()
	watcher, scheduler, server, asm := d.watcher, d.scheduler, d.server, d.assembly
	cancel := d.runCancel
	d.assembly = nil
	d.mu.Unlock()

	if watcher != nil {
		watcher.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			slog.Error("Failed to stop scheduler", logfields.Error(err))
		}
	}
	if server != nil {
		if err := server.Stop(ctx); err != nil {
			slog.Error("Failed to stop HTTP server", logfields.Error(err))
		}
	}
	if asm != nil {
		if err := asm.Close(); err != nil {
			slog.Error("Failed to close pipeline", logfields.Error(err))
		}
	}

	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped")
	return nil
}

// GetStatus returns the daemon lifecycle state.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetStartTime returns when the daemon was started.
func (d *Daemon) GetStartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// HTTPAddr returns the bound address of the operational HTTP server, empty
// when the server is disabled or not yet started.
func (d *Daemon) HTTPAddr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}

// LastRuns returns the most recent run summary per project.
func (d *Daemon) LastRuns() map[string]RunSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	runs := make(map[string]RunSummary, len(d.lastRuns))
	for project, summary := range d.lastRuns {
		runs[project] = summary
	}
	return runs
}

// ReloadConfig validates and applies a new configuration. A fresh pipeline is
// assembled before the old one is torn down, so a broken reload keeps the
// daemon on its previous config. No-op when the run-affecting fingerprint is
// unchanged.
func (d *Daemon) ReloadConfig(ctx context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if newCfg == nil || newCfg.Daemon == nil {
		return trackerrs.ConfigRequired("daemon")
	}
	if fp := newCfg.Fingerprint(); fp == d.fingerprint {
		slog.Info("Configuration unchanged, skipping reload")
		return nil
	}

	if newCfg.Daemon.HTTPAddr != d.cfg.Daemon.HTTPAddr {
		slog.Warn("HTTP address change requires a restart to take effect",
			slog.String("active", d.cfg.Daemon.HTTPAddr),
			slog.String("configured", newCfg.Daemon.HTTPAddr))
	}

	asm, err := pipeline.Assemble(ctx, newCfg, d.recorder)
	if err != nil {
		return fmt.Errorf("assemble pipeline from new configuration: %w", err)
	}

	oldAsm := d.assembly
	oldInterval := d.cfg.Daemon.IntervalDuration()
	d.assembly = asm
	d.cfg = newCfg
	d.fingerprint = newCfg.Fingerprint()

	if newInterval := newCfg.Daemon.IntervalDuration(); newInterval != oldInterval {
		if _, err := d.scheduler.SchedulePeriodicRuns(newInterval, d.trackAll); err != nil {
			slog.Error("Failed to reschedule runs, keeping previous interval",
				logfields.Error(err))
		} else {
			slog.Info("Run interval updated", slog.Duration("interval", newInterval))
		}
	}

	if oldAsm != nil {
		if err := oldAsm.Close(); err != nil {
			slog.Error("Failed to close previous pipeline", logfields.Error(err))
		}
	}

	slog.Info("Configuration reloaded", slog.Int("projects", len(newCfg.Projects)))
	return nil
}

// trackAll executes one tracking run per configured project. It is the
// scheduled task; failures degrade individual results and never abort the
// loop.
func (d *Daemon) trackAll() {
	d.mu.RLock()
	cfg, asm, ctx := d.cfg, d.assembly, d.runCtx
	d.mu.RUnlock()

	if asm == nil || ctx == nil || ctx.Err() != nil {
		return
	}

	for _, project := range cfg.Projects {
		if ctx.Err() != nil {
			return
		}
		result := asm.Runner.Run(ctx, project)
		d.recordRun(result)
	}
}

func (d *Daemon) recordRun(result *pipeline.Result) {
	summary := RunSummary{
		RunID:        result.RunID,
		Project:      result.Project,
		Outcome:      string(result.Outcome),
		Status:       string(result.Metrics.Status),
		AdoptionRate: result.Metrics.AdoptionRate,
		TotalTests:   result.Metrics.TotalTests,
		FinishedAt:   result.StartedAt.Add(result.Duration),
		DurationMS:   result.Duration.Milliseconds(),
		Warnings:     result.Warnings(),
	}

	d.mu.Lock()
	d.lastRuns[result.Project] = summary
	d.mu.Unlock()
}
