package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "migratrack"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fetchDuration   *prom.HistogramVec
	fetchRetries    *prom.CounterVec
	fetchExhausted  *prom.CounterVec
	recordsFetched  *prom.GaugeVec
	cacheEvents     *prom.CounterVec
	snapshotWrites  *prom.CounterVec
	runDuration     prom.Histogram
	runOutcomes     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg. A nil
// registry gets a fresh private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source fetches, attempts and backoff included",
			Buckets:   prom.DefBuckets,
		}, []string{"source", "result"}),
		fetchRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried fetch attempts by source",
		}, []string{"source"}),
		fetchExhausted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_exhausted_total",
			Help:      "Fetches that ran out of attempts by source",
		}, []string{"source"}),
		recordsFetched: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "records_fetched",
			Help:      "Record count of the most recent fetch per source",
		}, []string{"source"}),
		cacheEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache lookups by outcome",
		}, []string{"result"}),
		snapshotWrites: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_writes_total",
			Help:      "Snapshot store writes by project, source and result",
		}, []string{"project", "source", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by final outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		pr.fetchDuration,
		pr.fetchRetries,
		pr.fetchExhausted,
		pr.recordsFetched,
		pr.cacheEvents,
		pr.snapshotWrites,
		pr.runDuration,
		pr.runOutcomes,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveFetchDuration(source string, result ResultLabel, d time.Duration) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	p.fetchDuration.WithLabelValues(source, string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFetchRetry(source string) {
	if p == nil || p.fetchRetries == nil {
		return
	}
	p.fetchRetries.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncFetchExhausted(source string) {
	if p == nil || p.fetchExhausted == nil {
		return
	}
	p.fetchExhausted.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) SetRecordsFetched(source string, n int) {
	if p == nil || p.recordsFetched == nil {
		return
	}
	p.recordsFetched.WithLabelValues(source).Set(float64(n))
}

func (p *PrometheusRecorder) IncCacheEvent(result string) {
	if p == nil || p.cacheEvents == nil {
		return
	}
	p.cacheEvents.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncSnapshotWrite(project, source string, result ResultLabel) {
	if p == nil || p.snapshotWrites == nil {
		return
	}
	p.snapshotWrites.WithLabelValues(project, source, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

// Handler returns an http.Handler serving the registry's metrics.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
