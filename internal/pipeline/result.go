package pipeline

import (
	"time"

	"github.com/qaops/migratrack/internal/adoption"
	"github.com/qaops/migratrack/internal/cache"
	"github.com/qaops/migratrack/internal/config"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/trend"
)

// RunOutcome classifies how a run finished as a whole.
type RunOutcome string

const (
	// OutcomeSuccess means every source contributed fresh or cached data.
	OutcomeSuccess RunOutcome = "success"
	// OutcomeDegraded means the run completed on partial or stale data.
	OutcomeDegraded RunOutcome = "degraded"
	// OutcomeFailed means no source contributed any data.
	OutcomeFailed RunOutcome = "failed"
)

// SourceStatus describes how one source fared during a run.
type SourceStatus struct {
	Role config.SourceRole `json:"role"`
	Name string            `json:"name"`

	Records      int           `json:"records"`
	CacheOutcome cache.Outcome `json:"cache_outcome,omitempty"`
	StaleServed  bool          `json:"stale_served,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`

	FetchErr error `json:"-"`
	WriteErr error `json:"-"`

	// Snapshot is the unit persisted this run, nil when nothing was written
	// (cache hit, stale serve, fetch failure, or snapshot-free mode).
	Snapshot *snapshot.Snapshot `json:"-"`
}

// Degraded reports whether this source's contribution is partial, stale
// or unpersisted.
func (s *SourceStatus) Degraded() bool {
	return s.FetchErr != nil || s.WriteErr != nil
}

// Result is everything a single run produced. Per-source failures live in
// Sources; the run as a whole never aborts because one source failed.
type Result struct {
	RunID     string        `json:"run_id"`
	Project   string        `json:"project"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcome   RunOutcome    `json:"outcome"`

	Metrics adoption.MetricsResult `json:"metrics"`
	Trend   trend.TrendResult      `json:"trend"`

	// Sources is ordered primary first, then secondary.
	Sources []SourceStatus `json:"sources"`
}

// Degraded reports whether any source degraded during the run.
func (r *Result) Degraded() bool {
	for i := range r.Sources {
		if r.Sources[i].Degraded() {
			return true
		}
	}
	return false
}

// Warnings renders the per-source problems as display strings, primary
// source first. Empty when the run was clean.
func (r *Result) Warnings() []string {
	var out []string
	for i := range r.Sources {
		s := &r.Sources[i]
		if s.FetchErr != nil {
			msg := "source " + string(s.Role) + " degraded: " + s.FetchErr.Error()
			if s.StaleServed {
				msg += " (served stale cache)"
			}
			out = append(out, msg)
		}
		if s.WriteErr != nil {
			out = append(out, "snapshot write failed for "+string(s.Role)+": "+s.WriteErr.Error())
		}
		if s.Truncated {
			out = append(out, "source "+string(s.Role)+" fetch truncated at the record cap")
		}
	}
	return out
}
