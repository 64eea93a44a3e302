package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/qaops/migratrack/internal/config"
	trackerrs "github.com/qaops/migratrack/internal/errors"
	"github.com/qaops/migratrack/internal/logfields"
	"github.com/qaops/migratrack/internal/metrics"
	"github.com/qaops/migratrack/internal/observability"
	"github.com/qaops/migratrack/internal/retry"
)

// HTTPClient implements Client against the shared paginated JSON contract.
type HTTPClient struct {
	role       config.SourceRole
	name       string
	baseURL    string
	auth       *config.AuthConfig
	pageSize   int
	maxRecords int
	policy     retry.Policy
	httpClient *http.Client
	clock      clockwork.Clock
	recorder   metrics.Recorder
}

// Option customizes client construction.
type Option func(*HTTPClient)

// WithClock substitutes the backoff clock, letting tests retry without
// real wall-clock delays.
func WithClock(clock clockwork.Clock) Option {
	return func(c *HTTPClient) { c.clock = clock }
}

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithRecorder wires a metrics backend; the default is a noop.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *HTTPClient) { c.recorder = r }
}

// NewHTTPClient creates a client for one source role.
func NewHTTPClient(role config.SourceRole, src config.SourceConfig, fetch config.FetchConfig, opts ...Option) (*HTTPClient, error) {
	if src.BaseURL == "" {
		return nil, trackerrs.ConfigRequired(fmt.Sprintf("sources.%s.base_url", role))
	}

	pageSize := src.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxRecords := fetch.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 10000
	}

	client := &HTTPClient{
		role:       role,
		name:       src.Name,
		baseURL:    src.BaseURL,
		auth:       src.Auth,
		pageSize:   pageSize,
		maxRecords: maxRecords,
		policy:     retry.FromConfig(fetch),
		// The transport timeout bounds each attempt; retries restart it.
		httpClient: &http.Client{Timeout: fetch.TimeoutDuration()},
		clock:      clockwork.NewRealClock(),
		recorder:   metrics.NoopRecorder{},
	}
	if client.name == "" {
		client.name = string(role)
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Role returns which migration side this client reads.
func (c *HTTPClient) Role() config.SourceRole { return c.role }

// Name returns the friendly source name.
func (c *HTTPClient) Name() string { return c.name }

// FetchRecords retrieves the full inventory for a query, retrying transient
// failures per policy. Each attempt restarts pagination from the beginning
// so a half-fetched result is never returned.
func (c *HTTPClient) FetchRecords(ctx context.Context, query Query) (*RecordSet, error) {
	start := c.clock.Now()
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			c.recorder.ObserveFetchDuration(string(c.role), metrics.ResultFailed, c.clock.Since(start))
			return c.emptySet(query), trackerrs.FetchTimeout(string(c.role), err)
		}

		set, err := c.fetchAll(ctx, query)
		if err == nil {
			c.recorder.ObserveFetchDuration(string(c.role), metrics.ResultSuccess, c.clock.Since(start))
			c.recorder.SetRecordsFetched(string(c.role), set.Count())
			return set, nil
		}
		lastErr = err

		if !trackerrs.IsRetryable(err) {
			c.recorder.ObserveFetchDuration(string(c.role), metrics.ResultFailed, c.clock.Since(start))
			return c.emptySet(query), err
		}

		if attempt < c.policy.MaxAttempts {
			delay := c.policy.Delay(attempt)
			c.recorder.IncFetchRetry(string(c.role))
			observability.WarnContext(ctx, "Fetch attempt failed, retrying",
				logfields.Source(string(c.role)),
				logfields.Attempt(attempt),
				logfields.Error(err),
				durationAttr(delay),
			)
			select {
			case <-ctx.Done():
				c.recorder.ObserveFetchDuration(string(c.role), metrics.ResultFailed, c.clock.Since(start))
				return c.emptySet(query), trackerrs.FetchTimeout(string(c.role), ctx.Err())
			case <-c.clock.After(delay):
			}
		}
	}

	c.recorder.IncFetchExhausted(string(c.role))
	c.recorder.ObserveFetchDuration(string(c.role), metrics.ResultFailed, c.clock.Since(start))
	return c.emptySet(query), trackerrs.RetriesExhausted(string(c.role), c.policy.MaxAttempts, lastErr)
}

// emptySet is the degraded-mode value: callers always get a usable set.
func (c *HTTPClient) emptySet(query Query) *RecordSet {
	return &RecordSet{Project: query.Project, Source: string(c.role), Records: []TestRecord{}}
}

// pageResponse is the wire shape shared by both source systems.
type pageResponse struct {
	Tests      []recordPayload `json:"tests"`
	NextCursor string          `json:"next_cursor"`
	Total      int             `json:"total"`
}

// recordPayload decodes one test entry leniently: a malformed timestamp or
// missing optional field yields a zero value, never a decode failure.
type recordPayload struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Owner          string            `json:"owner"`
	ExecutionCount int               `json:"execution_count"`
	LastUpdated    string            `json:"last_updated"`
	Attributes     map[string]string `json:"attributes"`
}

func (p *recordPayload) toRecord() TestRecord {
	rec := TestRecord{
		ID:             p.ID,
		Status:         p.Status,
		Owner:          p.Owner,
		ExecutionCount: p.ExecutionCount,
		Attributes:     p.Attributes,
	}
	if p.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, p.LastUpdated); err == nil {
			rec.LastUpdated = ts.UTC()
		}
	}
	return rec
}

// fetchAll walks pagination until the source is exhausted or the safety cap
// is reached. Cursor continuation wins when the source provides one;
// otherwise offset continuation runs until a short page.
func (c *HTTPClient) fetchAll(ctx context.Context, query Query) (*RecordSet, error) {
	set := &RecordSet{Project: query.Project, Source: string(c.role), Records: []TestRecord{}}

	cursor := ""
	offset := 0
	for {
		page, err := c.fetchPage(ctx, query, cursor, offset)
		if err != nil {
			return nil, err
		}

		for i := range page.Tests {
			set.Records = append(set.Records, page.Tests[i].toRecord())
		}

		if len(set.Records) >= c.maxRecords {
			set.Records = set.Records[:c.maxRecords]
			set.Truncated = true
			observability.WarnContext(ctx, "Record cap reached, truncating fetch",
				logfields.Source(string(c.role)),
				logfields.Project(query.Project),
				logfields.Records(c.maxRecords),
			)
			return set, nil
		}

		if page.NextCursor != "" {
			cursor = page.NextCursor
			continue
		}
		if len(page.Tests) < c.pageSize {
			return set, nil
		}
		cursor = ""
		offset += len(page.Tests)
	}
}

// fetchPage performs a single page request and classifies failures.
func (c *HTTPClient) fetchPage(ctx context.Context, query Query, cursor string, offset int) (*pageResponse, error) {
	req, err := c.newRequest(ctx, query, cursor, offset)
	if err != nil {
		return nil, trackerrs.Internal("building fetch request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(string(c.role), err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(string(c.role), resp.StatusCode); err != nil {
		return nil, err
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, trackerrs.DataShape(string(c.role), err)
	}

	return &page, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, query Query, cursor string, offset int) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, "tests")

	q := u.Query()
	q.Set("project", query.Project)
	q.Set("limit", strconv.Itoa(c.pageSize))
	if query.SinceDays > 0 {
		q.Set("updated_within_days", strconv.Itoa(query.SinceDays))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	} else if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	if !c.auth.IsZero() {
		switch c.auth.Type {
		case config.AuthTypeToken:
			req.Header.Set("Authorization", "Bearer "+c.auth.Token)
		case config.AuthTypeBasic:
			req.SetBasicAuth(c.auth.Username, c.auth.Password)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "migratrack/1.0")

	return req, nil
}
