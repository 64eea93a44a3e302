package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/pipeline"
	"github.com/qaops/migratrack/internal/version"
)

// HealthStatus represents the overall health of the daemon.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall
// status. Degraded run outcomes keep the daemon healthy enough to serve
// traffic; only a broken lifecycle state is unhealthy.
func (d *Daemon) PerformHealthChecks() *HealthResponse {
	checks := []HealthCheck{
		d.checkLifecycle(),
		d.checkTrackingRuns(),
	}

	overall := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	return &HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(d.GetStartTime()).String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

// checkLifecycle verifies the daemon is in a healthy lifecycle state.
func (d *Daemon) checkLifecycle() HealthCheck {
	check := HealthCheck{Name: "daemon_status"}

	switch d.GetStatus() {
	case StatusRunning:
		check.Status = HealthStatusHealthy
		check.Message = "Daemon is running"
	case StatusStarting:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is still starting up"
	case StatusStopping:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is shutting down"
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Daemon is in %s state", d.GetStatus())
	}

	return check
}

// checkTrackingRuns reports on the most recent run per project.
func (d *Daemon) checkTrackingRuns() HealthCheck {
	check := HealthCheck{Name: "tracking_runs"}

	runs := d.LastRuns()
	if len(runs) == 0 {
		check.Status = HealthStatusDegraded
		check.Message = "No tracking run has completed yet"
		return check
	}

	var degraded, failed int
	for _, run := range runs {
		switch run.Outcome {
		case string(pipeline.OutcomeFailed):
			failed++
		case string(pipeline.OutcomeDegraded):
			degraded++
		}
	}

	switch {
	case failed > 0:
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("%d of %d projects failed their last run", failed, len(runs))
	case degraded > 0:
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("%d of %d projects ran degraded", degraded, len(runs))
	default:
		check.Status = HealthStatusHealthy
		check.Message = fmt.Sprintf("All %d projects tracked successfully", len(runs))
	}

	return check
}

// healthHandler serves the health check response. Degraded still answers 200
// so orchestrators do not restart a daemon that is limping but useful.
func (d *Daemon) healthHandler(w http.ResponseWriter, _ *http.Request) {
	health := d.PerformHealthChecks()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		slog.Error("Failed to encode health response", logfields.Error(err))
	}
}
