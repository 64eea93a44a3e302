package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Fingerprint computes a stable hash of run-affecting configuration fields.
// The daemon compares fingerprints across reloads to decide whether a
// rescheduling pass is needed; cosmetic fields (output format, log level)
// are excluded so tuning them does not interrupt a running schedule.
// Callers should run Load (defaults applied) before fingerprinting so
// canonical values drive the hash.
func (c *Config) Fingerprint() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "=")))
		h.Write([]byte{0})
	}

	projects := append([]string{}, c.Projects...)
	sort.Strings(projects)
	w("projects", strings.Join(projects, ","))

	for _, role := range Roles() {
		src := c.Sources.ByRole(role)
		prefix := "sources." + string(role)
		w(prefix+".base_url", src.BaseURL)
		w(prefix+".page_size", strconv.Itoa(src.PageSize))
		if !src.Auth.IsZero() {
			w(prefix+".auth_type", string(src.Auth.Type))
		}
	}

	w("fetch.timeout", c.Fetch.Timeout)
	w("fetch.max_attempts", strconv.Itoa(c.Fetch.MaxAttempts))
	w("fetch.backoff", string(c.Fetch.Backoff))
	w("fetch.initial_delay", c.Fetch.InitialDelay)
	w("fetch.max_delay", c.Fetch.MaxDelay)
	w("fetch.max_records", strconv.Itoa(c.Fetch.MaxRecords))

	w("cache.enabled", strconv.FormatBool(c.Cache.IsEnabled()))
	w("cache.ttl", c.Cache.TTL)

	w("snapshots.directory", c.Snapshots.Directory)

	w("trend.window_days", strconv.Itoa(c.Trend.WindowDays))
	w("trend.samples", strconv.Itoa(c.Trend.Samples))

	w("history.enabled", strconv.FormatBool(c.History.IsEnabled()))
	w("history.path", c.History.Path)

	w("events.enabled", strconv.FormatBool(c.Events.Enabled))
	w("events.url", c.Events.URL)
	w("events.subject_prefix", c.Events.SubjectPrefix)

	if c.Daemon != nil {
		w("daemon.interval", c.Daemon.Interval)
		w("daemon.http_addr", c.Daemon.HTTPAddr)
	}

	return hex.EncodeToString(h.Sum(nil))
}
