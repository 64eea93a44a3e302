package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/metrics"
	"github.com/qaops/migratrack/internal/version"
)

// httpServer serves the daemon's operational endpoints: Prometheus metrics,
// health checks and a JSON status summary.
type httpServer struct {
	daemon *Daemon
	server *http.Server
	ln     net.Listener
}

func newHTTPServer(d *Daemon, cfg *config.DaemonConfig) *httpServer {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, metrics.Handler(d.registry))
	mux.HandleFunc(cfg.HealthPath, d.healthHandler)
	mux.HandleFunc("/status", d.statusHandler)

	return &httpServer{
		daemon: d,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start binds the listener before serving so address conflicts fail fast
// instead of surfacing later from the serve goroutine.
func (s *httpServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server terminated", logfields.Error(err))
		}
	}()

	slog.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop drains in-flight requests within the context deadline.
func (s *httpServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, useful when the configured port is 0.
func (s *httpServer) Addr() string {
	if s.ln == nil {
		return s.server.Addr
	}
	return s.ln.Addr().String()
}

// statusResponse is the JSON body of the status endpoint.
type statusResponse struct {
	Status    Status                `json:"status"`
	Version   string                `json:"version"`
	StartedAt time.Time             `json:"started_at"`
	Uptime    string                `json:"uptime"`
	Projects  map[string]RunSummary `json:"projects"`
}

// statusHandler serves a summary of the daemon and its most recent runs.
func (d *Daemon) statusHandler(w http.ResponseWriter, _ *http.Request) {
	started := d.GetStartTime()
	resp := statusResponse{
		Status:    d.GetStatus(),
		Version:   version.Version,
		StartedAt: started.UTC(),
		Uptime:    time.Since(started).String(),
		Projects:  d.LastRuns(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode status response", logfields.Error(err))
	}
}
