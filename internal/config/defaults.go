package config

import "fmt"

// DomainDefaultApplier applies defaults for a specific configuration domain.
type DomainDefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// SourcesDefaultApplier handles source endpoint defaults.
type SourcesDefaultApplier struct{}

func (s *SourcesDefaultApplier) Domain() string { return "sources" }

func (s *SourcesDefaultApplier) ApplyDefaults(cfg *Config) error {
	applySourceDefaults(&cfg.Sources.Primary, RolePrimary)
	applySourceDefaults(&cfg.Sources.Secondary, RoleSecondary)
	return nil
}

func applySourceDefaults(src *SourceConfig, role SourceRole) {
	if src.Name == "" {
		src.Name = string(role)
	}
	if src.PageSize <= 0 {
		src.PageSize = 100
	}
	if src.Auth != nil && src.Auth.Type != "" {
		src.Auth.Type = NormalizeAuthType(string(src.Auth.Type))
	}
}

// FetchDefaultApplier handles fetch and retry defaults.
type FetchDefaultApplier struct{}

func (f *FetchDefaultApplier) Domain() string { return "fetch" }

func (f *FetchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Fetch.Timeout == "" {
		cfg.Fetch.Timeout = "30s"
	}
	if cfg.Fetch.MaxAttempts <= 0 {
		cfg.Fetch.MaxAttempts = 3
	}
	if cfg.Fetch.Backoff == "" {
		cfg.Fetch.Backoff = RetryBackoffExponential
	} else {
		cfg.Fetch.Backoff = NormalizeRetryBackoff(string(cfg.Fetch.Backoff))
	}
	if cfg.Fetch.InitialDelay == "" {
		cfg.Fetch.InitialDelay = "2s"
	}
	if cfg.Fetch.MaxDelay == "" {
		cfg.Fetch.MaxDelay = "30s"
	}
	if cfg.Fetch.MaxRecords <= 0 {
		cfg.Fetch.MaxRecords = 10000
	}
	return nil
}

// CacheDefaultApplier handles cache defaults.
type CacheDefaultApplier struct{}

func (c *CacheDefaultApplier) Domain() string { return "cache" }

func (c *CacheDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Cache.TTL == "" {
		cfg.Cache.TTL = "5m"
	}
	return nil
}

// SnapshotsDefaultApplier handles snapshot store defaults.
type SnapshotsDefaultApplier struct{}

func (s *SnapshotsDefaultApplier) Domain() string { return "snapshots" }

func (s *SnapshotsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Snapshots.Directory == "" {
		cfg.Snapshots.Directory = "./snapshots"
	}
	return nil
}

// TrendDefaultApplier handles trend analysis defaults.
type TrendDefaultApplier struct{}

func (t *TrendDefaultApplier) Domain() string { return "trend" }

func (t *TrendDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Trend.WindowDays <= 0 {
		cfg.Trend.WindowDays = 30
	}
	if cfg.Trend.Samples <= 0 {
		cfg.Trend.Samples = 7
	}
	return nil
}

// HistoryDefaultApplier handles run history defaults.
type HistoryDefaultApplier struct{}

func (h *HistoryDefaultApplier) Domain() string { return "history" }

func (h *HistoryDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		cfg.History.Path = "./migratrack.db"
	}
	return nil
}

// EventsDefaultApplier handles event publishing defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "migratrack"
	}
	if cfg.Events.Stream == "" {
		cfg.Events.Stream = "MIGRATRACK"
	}
	return nil
}

// DaemonDefaultApplier handles daemon defaults; only applies when a daemon block exists.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Daemon == nil {
		return nil
	}
	if cfg.Daemon.Interval == "" {
		cfg.Daemon.Interval = "1h"
	}
	if cfg.Daemon.MetricsPath == "" {
		cfg.Daemon.MetricsPath = "/metrics"
	}
	if cfg.Daemon.HealthPath == "" {
		cfg.Daemon.HealthPath = "/healthz"
	}
	return nil
}

// OutputDefaultApplier handles report output defaults.
type OutputDefaultApplier struct{}

func (o *OutputDefaultApplier) Domain() string { return "output" }

func (o *OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatTable
	} else {
		cfg.Output.Format = NormalizeOutputFormat(string(cfg.Output.Format))
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./reports"
	}
	return nil
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DomainDefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DomainDefaultApplier{
			&SourcesDefaultApplier{},
			&FetchDefaultApplier{},
			&CacheDefaultApplier{},
			&SnapshotsDefaultApplier{},
			&TrendDefaultApplier{},
			&HistoryDefaultApplier{},
			&EventsDefaultApplier{},
			&DaemonDefaultApplier{},
			&OutputDefaultApplier{},
			&LoggingDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

func applyDefaults(config *Config) error {
	applier := NewDefaultApplier()
	return applier.ApplyDefaults(config)
}
