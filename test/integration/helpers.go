package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qaops/migratrack/internal/tracker"
)

// fakeSourceOptions shapes one fake test-management API.
type fakeSourceOptions struct {
	records []tracker.TestRecord
	// pageSize splits the inventory into cursor-continued pages; zero serves
	// everything in one page.
	pageSize int
	// token, when set, is the only accepted bearer credential.
	token string
	// failTimes makes the first N requests return 500; negative fails all.
	failTimes int
}

// fakeSource is an httptest-backed source API speaking the paginated JSON
// contract the tracker client expects.
type fakeSource struct {
	server *httptest.Server
	opts   fakeSourceOptions
	count  atomic.Int32
}

func newFakeSource(t *testing.T, opts fakeSourceOptions) *fakeSource {
	t.Helper()

	fs := &fakeSource{opts: opts}
	fs.server = httptest.NewServer(http.HandlerFunc(fs.handle))
	return fs
}

// requests reports how many calls the source has served, failures included.
func (fs *fakeSource) requests() int {
	return int(fs.count.Load())
}

func (fs *fakeSource) handle(w http.ResponseWriter, r *http.Request) {
	n := int(fs.count.Add(1))

	if fs.opts.failTimes < 0 || n <= fs.opts.failTimes {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	}

	if fs.opts.token != "" && r.Header.Get("Authorization") != "Bearer "+fs.opts.token {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	start := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		start = parsed
	}

	end := len(fs.opts.records)
	next := ""
	if fs.opts.pageSize > 0 && start+fs.opts.pageSize < len(fs.opts.records) {
		end = start + fs.opts.pageSize
		next = strconv.Itoa(end)
	}

	page := struct {
		Tests      []apiRecord `json:"tests"`
		NextCursor string      `json:"next_cursor"`
		Total      int         `json:"total"`
	}{
		Tests:      toAPIRecords(fs.opts.records[start:end]),
		NextCursor: next,
		Total:      len(fs.opts.records),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

// apiRecord is the wire form one source entry travels in.
type apiRecord struct {
	ID             string            `json:"id"`
	Status         string            `json:"status,omitempty"`
	Owner          string            `json:"owner,omitempty"`
	ExecutionCount int               `json:"execution_count,omitempty"`
	LastUpdated    string            `json:"last_updated,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

func toAPIRecords(records []tracker.TestRecord) []apiRecord {
	out := make([]apiRecord, len(records))
	for i, rec := range records {
		out[i] = apiRecord{
			ID:             rec.ID,
			Status:         rec.Status,
			Owner:          rec.Owner,
			ExecutionCount: rec.ExecutionCount,
			Attributes:     rec.Attributes,
		}
		if !rec.LastUpdated.IsZero() {
			out[i].LastUpdated = rec.LastUpdated.Format(time.RFC3339)
		}
	}
	return out
}

func makeRecords(prefix string, n int) []tracker.TestRecord {
	records := make([]tracker.TestRecord, n)
	for i := range records {
		records[i] = tracker.TestRecord{
			ID:     prefix + "-" + strconv.Itoa(i+1),
			Status: "active",
			Owner:  "qa",
		}
	}
	return records
}
