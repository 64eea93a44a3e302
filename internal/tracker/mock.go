package tracker

import (
	"context"
	"sync"

	"github.com/qaops/migratrack/internal/config"
)

// MockClient is a configurable in-memory Client for tests and dry runs.
// It simulates per-project inventories, scripted failures and failure-then-
// success sequences without a network.
type MockClient struct {
	mu sync.Mutex

	role config.SourceRole
	name string

	records map[string][]TestRecord // project -> inventory
	err     error                   // returned on every fetch when set
	// failures counts down: each fetch consumes one failure before success.
	failures   int
	failureErr error

	fetchCount int
}

// NewMockClient creates a mock for the given role.
func NewMockClient(role config.SourceRole) *MockClient {
	return &MockClient{
		role:    role,
		name:    string(role),
		records: make(map[string][]TestRecord),
	}
}

// SetRecords installs the inventory returned for a project.
func (m *MockClient) SetRecords(project string, records []TestRecord) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[project] = records
	return m
}

// SetError makes every fetch fail with err.
func (m *MockClient) SetError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// FailTimes makes the next n fetches fail with err, then succeed.
func (m *MockClient) FailTimes(n int, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failureErr = err
	return m
}

// FetchCount reports how many fetches were attempted.
func (m *MockClient) FetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCount
}

// Role implements Client.
func (m *MockClient) Role() config.SourceRole { return m.role }

// Name implements Client.
func (m *MockClient) Name() string { return m.name }

// FetchRecords implements Client.
func (m *MockClient) FetchRecords(ctx context.Context, query Query) (*RecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetchCount++
	empty := &RecordSet{Project: query.Project, Source: string(m.role), Records: []TestRecord{}}

	if err := ctx.Err(); err != nil {
		return empty, err
	}
	if m.err != nil {
		return empty, m.err
	}
	if m.failures > 0 {
		m.failures--
		return empty, m.failureErr
	}

	records := m.records[query.Project]
	out := make([]TestRecord, len(records))
	copy(out, records)
	return &RecordSet{Project: query.Project, Source: string(m.role), Records: out}, nil
}
