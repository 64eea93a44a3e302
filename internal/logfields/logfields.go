package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyProject    = "project"
	KeySource     = "source"
	KeyStage      = "stage"
	KeyAttempt    = "attempt"
	KeyRecords    = "records"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyAge        = "age"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Records(n int) slog.Attr         { return slog.Int(KeyRecords, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Age(d time.Duration) slog.Attr   { return slog.String(KeyAge, d.String()) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
