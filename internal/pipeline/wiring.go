package pipeline

import (
	"context"
	"errors"

	"github.com/qaops/migratrack/internal/cache"
	"github.com/qaops/migratrack/internal/config"
	trackerrs "github.com/qaops/migratrack/internal/errors"
	"github.com/qaops/migratrack/internal/events"
	"github.com/qaops/migratrack/internal/history"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/metrics"
	"github.com/qaops/migratrack/internal/observability"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/tracker"
)

// Assembly bundles a config-built runner with the resources it owns.
// Callers must Close it when done.
type Assembly struct {
	Runner  *Runner
	History *history.Store
	Events  events.Publisher
}

// Close releases the history database and the event publisher connection.
func (a *Assembly) Close() error {
	var errs []error
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Assemble builds the full pipeline from configuration: an HTTP client per
// source, the snapshot store, and cache, history and event publishing when
// enabled. An unreachable event broker downgrades to the noop publisher with
// a warning since events are advisory. Extra options are applied last so
// callers can override config-driven choices.
func Assemble(ctx context.Context, cfg *config.Config, rec metrics.Recorder, extra ...Option) (*Assembly, error) {
	if cfg == nil {
		return nil, trackerrs.ConfigRequired("config")
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	clients := make([]tracker.Client, 0, 2)
	for _, role := range config.Roles() {
		client, err := tracker.NewHTTPClient(role, cfg.Sources.ByRole(role), cfg.Fetch, tracker.WithRecorder(rec))
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	store, err := snapshot.NewStore(cfg.Snapshots.Directory)
	if err != nil {
		return nil, err
	}

	asm := &Assembly{Events: events.NoopPublisher{}}
	opts := []Option{WithRecorder(rec)}
	if cfg.Trend.WindowDays > 0 && cfg.Trend.Samples > 0 {
		opts = append(opts, WithTrendWindow(cfg.Trend.WindowDays, cfg.Trend.Samples))
	}

	if cfg.Cache.IsEnabled() {
		opts = append(opts, WithCache(cache.New(cfg.Cache.TTLDuration())))
	}

	if cfg.History.IsEnabled() {
		hist, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		asm.History = hist
		opts = append(opts, WithHistory(hist))
	}

	if cfg.Events.Enabled {
		pub, err := events.NewNATSPublisher(&cfg.Events)
		if err != nil {
			observability.WarnContext(ctx, "Event broker unavailable, publishing disabled",
				logfields.Error(err))
		} else {
			asm.Events = pub
		}
	}
	opts = append(opts, WithPublisher(asm.Events))
	opts = append(opts, extra...)

	runner, err := NewRunner(clients, store, opts...)
	if err != nil {
		asm.Close() //nolint:errcheck
		return nil, err
	}
	asm.Runner = runner
	return asm, nil
}
