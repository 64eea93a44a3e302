package config

import (
	"time"

	"github.com/qaops/migratrack/internal/foundation/normalization"
)

// SourceRole identifies which side of the migration a source sits on.
type SourceRole string

const (
	// RolePrimary is the system tests are migrating away from.
	RolePrimary SourceRole = "primary"
	// RoleSecondary is the system tests are migrating to.
	RoleSecondary SourceRole = "secondary"
)

// Roles returns both source roles in canonical order, primary first.
func Roles() []SourceRole {
	return []SourceRole{RolePrimary, RoleSecondary}
}

// AuthType enumerates supported API authentication methods (stringly for YAML compatibility).
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

var authTypeNormalizer = normalization.NewNormalizer(map[string]AuthType{
	"none":  AuthTypeNone,
	"token": AuthTypeToken,
	"basic": AuthTypeBasic,
}, AuthTypeNone)

// NormalizeAuthType canonicalizes user input, defaulting to none.
func NormalizeAuthType(raw string) AuthType {
	return authTypeNormalizer.Normalize(raw)
}

// AuthConfig represents API authentication configuration for one source.
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// SourceConfig describes one test management API endpoint.
type SourceConfig struct {
	Name     string      `yaml:"name,omitempty"` // friendly name for logs and reports
	BaseURL  string      `yaml:"base_url"`
	Auth     *AuthConfig `yaml:"auth,omitempty"`
	PageSize int         `yaml:"page_size,omitempty"` // records requested per page
}

// SourcesConfig holds both migration endpoints.
type SourcesConfig struct {
	Primary   SourceConfig `yaml:"primary"`
	Secondary SourceConfig `yaml:"secondary"`
}

// ByRole returns the source config for the given role.
func (s *SourcesConfig) ByRole(role SourceRole) SourceConfig {
	if role == RoleSecondary {
		return s.Secondary
	}
	return s.Primary
}

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffExponential)

// NormalizeRetryBackoff converts user input into a typed mode, defaulting to exponential.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// FetchConfig holds the knobs for talking to the source APIs.
// All zero values trigger defaults, so an empty block is valid.
type FetchConfig struct {
	// Timeout bounds each individual request attempt.
	Timeout string `yaml:"timeout,omitempty"` // duration string (default 30s)
	// MaxAttempts is the total number of tries per fetch, first attempt included.
	MaxAttempts int `yaml:"max_attempts,omitempty"` // default 3
	// Backoff selects the delay growth between attempts.
	Backoff RetryBackoffMode `yaml:"backoff,omitempty"` // fixed|linear|exponential (default exponential)
	// InitialDelay seeds the backoff sequence.
	InitialDelay string `yaml:"initial_delay,omitempty"` // duration string (default 2s)
	// MaxDelay caps the backoff growth.
	MaxDelay string `yaml:"max_delay,omitempty"` // duration string (default 30s)
	// MaxRecords caps pagination; a source returning more is cut off with a warning.
	MaxRecords int `yaml:"max_records,omitempty"` // default 10000
}

// TimeoutDuration returns the parsed per-attempt timeout.
// Defaults and validation guarantee the string parses after Load.
func (f *FetchConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// InitialDelayDuration returns the parsed backoff seed delay.
func (f *FetchConfig) InitialDelayDuration() time.Duration {
	d, err := time.ParseDuration(f.InitialDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// MaxDelayDuration returns the parsed backoff cap.
func (f *FetchConfig) MaxDelayDuration() time.Duration {
	d, err := time.ParseDuration(f.MaxDelay)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CacheConfig controls the in-memory fetch result cache.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // default true
	TTL     string `yaml:"ttl,omitempty"`     // duration string (default 5m)
}

// IsEnabled reports whether caching is on, defaulting to true when omitted.
func (c *CacheConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// TTLDuration returns the parsed cache entry lifetime.
func (c *CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// SnapshotsConfig controls persisted per-run snapshots.
type SnapshotsConfig struct {
	Directory string `yaml:"directory,omitempty"` // default ./snapshots
}

// TrendConfig controls historical trend analysis.
type TrendConfig struct {
	// WindowDays bounds how far back snapshots are read.
	WindowDays int `yaml:"window_days,omitempty"` // default 30
	// Samples is how many recent daily points feed the trend math.
	Samples int `yaml:"samples,omitempty"` // default 7
}

// HistoryConfig controls the local run history database.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // default true
	Path    string `yaml:"path,omitempty"`    // default ./migratrack.db
}

// IsEnabled reports whether run history recording is on.
func (h *HistoryConfig) IsEnabled() bool { return h.Enabled == nil || *h.Enabled }

// EventsConfig controls optional NATS publishing of run outcomes.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url,omitempty"`            // default nats://127.0.0.1:4222
	SubjectPrefix string `yaml:"subject_prefix,omitempty"` // default migratrack
	Stream        string `yaml:"stream,omitempty"`         // default MIGRATRACK
}

// DaemonConfig holds settings for continuous tracking mode.
type DaemonConfig struct {
	// Interval between scheduled pipeline runs.
	Interval string `yaml:"interval,omitempty"` // duration string (default 1h)
	// HTTPAddr serves metrics and health endpoints; empty disables the server.
	HTTPAddr    string `yaml:"http_addr,omitempty"`
	MetricsPath string `yaml:"metrics_path,omitempty"` // default /metrics
	HealthPath  string `yaml:"health_path,omitempty"`  // default /healthz
}

// IntervalDuration returns the parsed run interval.
func (d *DaemonConfig) IntervalDuration() time.Duration {
	dur, err := time.ParseDuration(d.Interval)
	if err != nil {
		return time.Hour
	}
	return dur
}

// OutputFormat enumerates supported report renderings.
type OutputFormat string

const (
	FormatTable    OutputFormat = "table"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
	FormatHTML     OutputFormat = "html"
)

var outputFormatNormalizer = normalization.NewNormalizer(map[string]OutputFormat{
	"table":    FormatTable,
	"json":     FormatJSON,
	"csv":      FormatCSV,
	"markdown": FormatMarkdown,
	"html":     FormatHTML,
}, FormatTable)

// NormalizeOutputFormat canonicalizes a format string, defaulting to table.
func NormalizeOutputFormat(raw string) OutputFormat {
	return outputFormatNormalizer.Normalize(raw)
}

// StrictOutputFormat rejects unknown format strings instead of defaulting.
func StrictOutputFormat(raw string) (OutputFormat, error) {
	return outputFormatNormalizer.NormalizeStrict(raw)
}

// OutputConfig controls where and how reports are written.
type OutputConfig struct {
	Format    OutputFormat `yaml:"format,omitempty"`    // table|json|csv|markdown|html
	Directory string       `yaml:"directory,omitempty"` // default ./reports, used by file formats
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug": LogLevelDebug,
	"info":  LogLevelInfo,
	"warn":  LogLevelWarn,
	"error": LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel canonicalizes a level string, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// NormalizeLogFormat canonicalizes a format string, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`  // debug|info|warn|error
	Format LogFormat `yaml:"format,omitempty"` // json|text
}
