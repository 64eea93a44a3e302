// Package metrics provides observability hooks for fetch, cache, snapshot
// and pipeline activity.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics impose no overhead and no nil checks unless a
// real backend is wired in:
//
//	client, err := tracker.NewHTTPClient(role, src, fetchCfg,
//	    tracker.WithRecorder(metrics.NewPrometheusRecorder(registry)))
//
// The daemon activates the Prometheus implementation and serves it via
// Handler; one-shot CLI runs keep the noop.
package metrics
