// Package tracker fetches test-case inventories from the two test
// management systems a migration moves between. Each source is reached
// through the same paginated JSON contract; the client retries transient
// failures with backoff and classifies everything else into typed errors
// callers can branch on.
package tracker

import (
	"context"
	"time"

	"github.com/qaops/migratrack/internal/config"
)

// TestRecord is one test case entry from a source system.
// It is created from the raw API response and never mutated afterwards.
type TestRecord struct {
	ID             string            `json:"id"`
	Status         string            `json:"status,omitempty"`
	Owner          string            `json:"owner,omitempty"`
	ExecutionCount int               `json:"execution_count,omitempty"`
	LastUpdated    time.Time         `json:"last_updated,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// RecordSet is the complete fetched inventory for one (project, source) pair.
type RecordSet struct {
	Project string       `json:"project"`
	Source  string       `json:"source"` // role: primary|secondary
	Records []TestRecord `json:"records"`
	// Truncated is set when pagination stopped at the safety cap.
	Truncated bool `json:"truncated,omitempty"`
}

// Count returns the number of records in the set; nil-safe.
func (rs *RecordSet) Count() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Query selects which records to fetch from a source.
type Query struct {
	// Project scopes the fetch to one migration project key.
	Project string
	// SinceDays limits records to ones updated in the last N days; 0 means all.
	SinceDays int
}

// Client is the contract the pipeline fetches through.
type Client interface {
	// Role identifies which migration side this client reads.
	Role() config.SourceRole
	// Name returns the friendly source name for logs and reports.
	Name() string
	// FetchRecords retrieves the full record inventory for a query.
	// On failure it returns an empty but non-nil RecordSet together with the
	// error, so callers can degrade to partial results.
	FetchRecords(ctx context.Context, query Query) (*RecordSet, error)
}
