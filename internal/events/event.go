package events

import (
	"time"
)

// Event type tokens used as NATS subject segments.
const (
	TypeRunCompleted   = "run_completed"
	TypeSourceDegraded = "source_degraded"
)

// RunCompletedEvent summarizes a finished pipeline run. It is published for
// downstream consumers (dashboards, alerting) and carries plain values only,
// so subscribers do not need this module's types to decode it.
type RunCompletedEvent struct {
	RunID   string `json:"run_id"`
	Project string `json:"project"`
	Outcome string `json:"outcome"` // success, degraded, failed
	Status  string `json:"status"`  // no_data, in_progress, complete

	AdoptionRate   float64 `json:"adoption_rate"`
	TotalTests     int     `json:"total_tests"`
	PrimaryCount   int     `json:"primary_count"`
	SecondaryCount int     `json:"secondary_count"`

	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"` // set at publish time
}

// SourceDegradedEvent records that one tracker source failed during a run.
type SourceDegradedEvent struct {
	RunID   string `json:"run_id"`
	Project string `json:"project"`
	Source  string `json:"source"` // primary or secondary
	Reason  string `json:"reason"`

	// StaleServed is true when an expired cache entry stood in for the
	// failed fetch, false when the source contributed nothing.
	StaleServed bool      `json:"stale_served"`
	Timestamp   time.Time `json:"timestamp"`
}
