// Package pipeline orchestrates a tracking run: fetch the test inventory
// from both sources, persist snapshots, compute adoption metrics and derive
// the trend from stored history.
//
// The orchestration contract is graceful degradation. One source failing
// degrades only that source's contribution; a caller deadline aborts
// outstanding fetches and still yields a partial result. Run therefore
// returns a Result in every case and reports per-source problems inside it
// instead of aborting.
package pipeline

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/qaops/migratrack/internal/adoption"
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
	"github.com/qaops/migratrack/internal/trend"
)

// Runner executes tracking runs against a fixed set of sources.
type Runner struct {
	clients  []tracker.Client
	store    *snapshot.Store
	cache    *cache.Cache
	history  *history.Store
	events   events.Publisher
	recorder metrics.Recorder
	clock    clockwork.Clock

	windowDays int
	samples    int
	parallel   bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithCache routes fetches through a TTL cache. Without it every run hits
// the network.
func WithCache(c *cache.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithHistory records runs and their events in the run log.
func WithHistory(h *history.Store) Option {
	return func(r *Runner) { r.history = h }
}

// WithPublisher emits run telemetry events after each run.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) { r.events = p }
}

// WithRecorder wires run and cache metrics.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock injects the clock used for run timing and trend reference time.
func WithClock(clk clockwork.Clock) Option {
	return func(r *Runner) { r.clock = clk }
}

// WithParallelFetch fetches sources concurrently, one worker per source.
// Results are identical to sequential execution.
func WithParallelFetch(enabled bool) Option {
	return func(r *Runner) { r.parallel = enabled }
}

// WithTrendWindow bounds how far back snapshots feed the trend and how many
// recent samples the result carries.
func WithTrendWindow(days, samples int) Option {
	return func(r *Runner) {
		r.windowDays = days
		r.samples = samples
	}
}

// NewRunner builds a Runner over the given source clients and snapshot
// store. Clients are reordered primary first; duplicate roles are rejected.
func NewRunner(clients []tracker.Client, store *snapshot.Store, opts ...Option) (*Runner, error) {
	if len(clients) == 0 {
		return nil, trackerrs.ConfigRequired("sources")
	}
	if store == nil {
		return nil, trackerrs.ConfigRequired("snapshot store")
	}

	ordered := make([]tracker.Client, 0, len(clients))
	seen := make(map[config.SourceRole]bool, len(clients))
	for _, role := range config.Roles() {
		for _, cl := range clients {
			if cl.Role() != role {
				continue
			}
			if seen[role] {
				return nil, trackerrs.ValidationFailed("sources", fmt.Sprintf("duplicate %s source", role))
			}
			seen[role] = true
			ordered = append(ordered, cl)
		}
	}
	if len(ordered) != len(clients) {
		return nil, trackerrs.ValidationFailed("sources", "source with unknown role")
	}

	r := &Runner{
		clients:    ordered,
		store:      store,
		events:     events.NoopPublisher{},
		recorder:   metrics.NoopRecorder{},
		clock:      clockwork.NewRealClock(),
		windowDays: 30,
		samples:    trend.DefaultRecentSamples,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type sourceFetch struct {
	status SourceStatus
	set    *tracker.RecordSet
}

// Run executes one full tracking run for a project. It always returns a
// Result: fetch failures, stale serves and snapshot write failures degrade
// the run and are reported per source, never as an error. Stale cache
// entries may stand in for a failed fetch; they are flagged, not silent.
func (r *Runner) Run(ctx context.Context, project string) *Result {
	if observability.RunIDFromContext(ctx) == "" {
		ctx = observability.WithNewRunID(ctx)
	}
	ctx = observability.WithProject(ctx, project)

	start := r.clock.Now()
	result := &Result{
		RunID:     observability.RunIDFromContext(ctx),
		Project:   project,
		StartedAt: start.UTC(),
	}

	observability.InfoContext(ctx, "Run started",
		logfields.Project(project))

	fetches := r.fetchAll(ctx, project)
	r.persistSnapshots(ctx, project, fetches)

	var primary, secondary *tracker.RecordSet
	for i := range fetches {
		switch fetches[i].status.Role {
		case config.RolePrimary:
			primary = fetches[i].set
		case config.RoleSecondary:
			secondary = fetches[i].set
		}
		result.Sources = append(result.Sources, fetches[i].status)
	}
	result.Metrics = adoption.ComputeFromSets(primary, secondary)

	tr, err := r.Trend(ctx, project)
	if err != nil {
		observability.WarnContext(ctx, "Trend analysis skipped",
			logfields.Error(err))
		tr = trend.Analyze(nil, r.clock.Now(), r.trendOptions())
	}
	result.Trend = tr

	result.Duration = r.clock.Since(start)
	result.Outcome = r.classify(result)

	r.recorder.ObserveRunDuration(result.Duration)
	r.recorder.IncRunOutcome(metrics.OutcomeLabel(result.Outcome))

	r.recordHistory(ctx, result)
	r.publishEvents(ctx, result)

	observability.InfoContext(ctx, "Run finished",
		logfields.Project(project),
		logfields.Records(result.Metrics.TotalTests),
		logfields.DurationMS(float64(result.Duration.Milliseconds())),
		logfields.Outcome(string(result.Outcome)))

	return result
}

// Analyze computes metrics and the trend from the latest stored snapshots
// without touching the network. It backs cached reporting and is not
// recorded as a run.
func (r *Runner) Analyze(ctx context.Context, project string) (*Result, error) {
	if observability.RunIDFromContext(ctx) == "" {
		ctx = observability.WithNewRunID(ctx)
	}
	ctx = observability.WithProject(ctx, project)

	start := r.clock.Now()
	result := &Result{
		RunID:     observability.RunIDFromContext(ctx),
		Project:   project,
		StartedAt: start.UTC(),
		Outcome:   OutcomeSuccess,
	}

	var primary, secondary []tracker.TestRecord
	for _, cl := range r.clients {
		snap, err := r.store.Latest(ctx, project, string(cl.Role()))
		if err != nil {
			return nil, err
		}
		status := SourceStatus{Role: cl.Role(), Name: cl.Name(), Records: snap.Count()}
		if snap != nil {
			switch cl.Role() {
			case config.RolePrimary:
				primary = snap.Records
			case config.RoleSecondary:
				secondary = snap.Records
			}
			status.Snapshot = snap
		}
		result.Sources = append(result.Sources, status)
	}
	result.Metrics = adoption.Compute(primary, secondary)

	tr, err := r.Trend(ctx, project)
	if err != nil {
		return nil, err
	}
	result.Trend = tr
	result.Duration = r.clock.Since(start)
	return result, nil
}

// Trend derives the adoption trend for a project from stored snapshots
// within the configured window.
func (r *Runner) Trend(ctx context.Context, project string) (trend.TrendResult, error) {
	primary, err := r.store.Read(ctx, project, string(config.RolePrimary), r.windowDays)
	if err != nil {
		return trend.TrendResult{}, err
	}
	secondary, err := r.store.Read(ctx, project, string(config.RoleSecondary), r.windowDays)
	if err != nil {
		return trend.TrendResult{}, err
	}

	points := trend.BuildDailyPoints(primary, secondary)
	return trend.Analyze(points, r.clock.Now(), r.trendOptions()), nil
}

func (r *Runner) trendOptions() trend.Options {
	return trend.Options{RecentSamples: r.samples}
}

// fetchAll retrieves every source's inventory, sequentially by default or
// with one worker per source when parallel fetching is on.
func (r *Runner) fetchAll(ctx context.Context, project string) []sourceFetch {
	ctx = observability.WithStage(ctx, "fetch")
	query := tracker.Query{Project: project}

	if r.parallel && len(r.clients) > 1 {
		return runOrdered(r.clients, len(r.clients), func(cl tracker.Client) sourceFetch {
			return r.fetchOne(ctx, cl, query)
		})
	}

	out := make([]sourceFetch, 0, len(r.clients))
	for _, cl := range r.clients {
		out = append(out, r.fetchOne(ctx, cl, query))
	}
	return out
}

// fetchOne pulls a single source, through the cache when one is wired.
// Degraded mode is always granted: a flagged stale result beats no result
// for trend continuity.
func (r *Runner) fetchOne(ctx context.Context, client tracker.Client, query tracker.Query) sourceFetch {
	role := string(client.Role())
	ctx = observability.WithSource(ctx, role)

	status := SourceStatus{Role: client.Role(), Name: client.Name()}

	var set *tracker.RecordSet
	var err error
	if r.cache != nil {
		var outcome cache.Outcome
		set, outcome, err = r.cache.GetOrFetch(ctx, cache.KeyFor(client, query), true,
			func(ctx context.Context) (*tracker.RecordSet, error) {
				return client.FetchRecords(ctx, query)
			})
		status.CacheOutcome = outcome
		status.StaleServed = outcome == cache.OutcomeStale
		r.recorder.IncCacheEvent(string(outcome))
	} else {
		set, err = client.FetchRecords(ctx, query)
	}

	if err != nil {
		status.FetchErr = err
		observability.WarnContext(ctx, "Source fetch failed, continuing without it",
			logfields.Source(role),
			logfields.Error(err))
	}
	status.Records = set.Count()
	if set != nil {
		status.Truncated = set.Truncated
	}
	return sourceFetch{status: status, set: set}
}

// persistSnapshots writes one snapshot per freshly fetched source. Cache
// hits and stale serves are not re-persisted; their records are already on
// disk from the run that fetched them.
func (r *Runner) persistSnapshots(ctx context.Context, project string, fetches []sourceFetch) {
	ctx = observability.WithStage(ctx, "snapshot")

	for i := range fetches {
		f := &fetches[i]
		if f.status.FetchErr != nil || f.status.CacheOutcome == cache.OutcomeHit {
			continue
		}
		role := string(f.status.Role)

		snap, err := r.store.Write(ctx, project, role, f.set.Records)
		if err != nil {
			f.status.WriteErr = err
			r.recorder.IncSnapshotWrite(project, role, metrics.ResultFailed)
			observability.WarnContext(ctx, "Snapshot write failed, prior history intact",
				logfields.Source(role),
				logfields.Error(err))
			continue
		}
		f.status.Snapshot = snap
		r.recorder.IncSnapshotWrite(project, role, metrics.ResultSuccess)
	}
}

// classify folds the per-source statuses into the run outcome.
func (r *Runner) classify(result *Result) RunOutcome {
	fetchFailures := 0
	for i := range result.Sources {
		if result.Sources[i].FetchErr != nil {
			fetchFailures++
		}
	}
	switch {
	case fetchFailures == len(result.Sources) && result.Metrics.TotalTests == 0:
		return OutcomeFailed
	case result.Degraded():
		return OutcomeDegraded
	default:
		return OutcomeSuccess
	}
}

// recordHistory appends the run and its notable events to the run log.
// History is telemetry: failures log a warning and nothing else.
func (r *Runner) recordHistory(ctx context.Context, result *Result) {
	if r.history == nil {
		return
	}
	ctx = observability.WithStage(ctx, "record")

	run := history.Run{
		RunID:          result.RunID,
		Project:        result.Project,
		StartedAt:      result.StartedAt,
		Duration:       result.Duration,
		Outcome:        string(result.Outcome),
		Status:         string(result.Metrics.Status),
		AdoptionRate:   result.Metrics.AdoptionRate,
		TotalTests:     result.Metrics.TotalTests,
		PrimaryCount:   result.Metrics.PrimaryCount,
		SecondaryCount: result.Metrics.SecondaryCount,
	}

	var evs []history.Event
	for i := range result.Sources {
		s := &result.Sources[i]
		if s.FetchErr != nil {
			evs = append(evs, history.Event{
				RunID:   result.RunID,
				Type:    history.EventSourceDegraded,
				Source:  string(s.Role),
				Message: s.FetchErr.Error(),
			})
		}
		if s.StaleServed {
			evs = append(evs, history.Event{
				RunID:   result.RunID,
				Type:    history.EventStaleCacheServed,
				Source:  string(s.Role),
				Message: fmt.Sprintf("served %d stale records", s.Records),
			})
		}
		if s.Truncated {
			evs = append(evs, history.Event{
				RunID:   result.RunID,
				Type:    history.EventFetchTruncated,
				Source:  string(s.Role),
				Message: fmt.Sprintf("stopped at %d records", s.Records),
			})
		}
		if s.WriteErr != nil {
			evs = append(evs, history.Event{
				RunID:   result.RunID,
				Type:    history.EventSnapshotFailed,
				Source:  string(s.Role),
				Message: s.WriteErr.Error(),
			})
		}
	}

	if err := r.history.AppendRun(ctx, run, evs); err != nil {
		observability.WarnContext(ctx, "Run history append failed",
			logfields.Error(err))
	}
}

// publishEvents emits run telemetry. Publish failures are warnings, never
// run failures.
func (r *Runner) publishEvents(ctx context.Context, result *Result) {
	err := r.events.PublishRunCompleted(ctx, &events.RunCompletedEvent{
		RunID:          result.RunID,
		Project:        result.Project,
		Outcome:        string(result.Outcome),
		Status:         string(result.Metrics.Status),
		AdoptionRate:   result.Metrics.AdoptionRate,
		TotalTests:     result.Metrics.TotalTests,
		PrimaryCount:   result.Metrics.PrimaryCount,
		SecondaryCount: result.Metrics.SecondaryCount,
		DurationMS:     result.Duration.Milliseconds(),
	})
	if err != nil {
		observability.WarnContext(ctx, "Run event publish failed",
			logfields.Error(err))
	}

	for i := range result.Sources {
		s := &result.Sources[i]
		if s.FetchErr == nil {
			continue
		}
		err := r.events.PublishSourceDegraded(ctx, &events.SourceDegradedEvent{
			RunID:       result.RunID,
			Project:     result.Project,
			Source:      string(s.Role),
			Reason:      s.FetchErr.Error(),
			StaleServed: s.StaleServed,
		})
		if err != nil {
			observability.WarnContext(ctx, "Degraded source event publish failed",
				logfields.Source(string(s.Role)),
				logfields.Error(err))
		}
	}
}
