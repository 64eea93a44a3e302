package tracker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	trackerrs "github.com/qaops/migratrack/internal/errors"
)

// classifyTransportError maps low-level transport failures onto the typed
// taxonomy. Timeouts and connection drops are transient; everything else on
// this path is still network-shaped and worth one more try.
func classifyTransportError(source string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return trackerrs.FetchTimeout(source, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return trackerrs.FetchTimeout(source, err)
	}
	return trackerrs.NetworkFailed(source, err)
}

// classifyStatus maps HTTP status codes onto the typed taxonomy.
// 401/403 mean bad credentials and are never retried; 5xx and 429 are
// transient; remaining 4xx are caller mistakes and not retried either.
func classifyStatus(source string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return trackerrs.AuthRejected(source, status)
	default:
		return trackerrs.NetworkStatus(source, status)
	}
}

func durationAttr(d time.Duration) slog.Attr {
	return slog.String("backoff", d.String())
}
