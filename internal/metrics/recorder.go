package metrics

import "time"

// ResultLabel enumerates operation result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// OutcomeLabel enumerates how a whole pipeline run ended.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeDegraded OutcomeLabel = "degraded"
	OutcomeFailed   OutcomeLabel = "failed"
)

// Recorder defines the observability hooks. Implementations forward to a
// metrics backend; NoopRecorder is the default for unwired components.
type Recorder interface {
	ObserveFetchDuration(source string, result ResultLabel, d time.Duration)
	IncFetchRetry(source string)
	IncFetchExhausted(source string)
	SetRecordsFetched(source string, n int)
	IncCacheEvent(result string) // hit|fetched|stale|error
	IncSnapshotWrite(project, source string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome OutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetchDuration(string, ResultLabel, time.Duration) {}
func (NoopRecorder) IncFetchRetry(string)                                    {}
func (NoopRecorder) IncFetchExhausted(string)                                {}
func (NoopRecorder) SetRecordsFetched(string, int)                           {}
func (NoopRecorder) IncCacheEvent(string)                                    {}
func (NoopRecorder) IncSnapshotWrite(string, string, ResultLabel)            {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                        {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                              {}
