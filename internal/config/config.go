// Package config loads, normalizes, validates and defaults the migratrack
// configuration file. Values may reference environment variables with
// ${VAR} syntax; a .env file next to the working directory is loaded first
// so local development does not need exported shell state.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	trackerrs "github.com/qaops/migratrack/internal/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Projects  []string        `yaml:"projects"`
	Sources   SourcesConfig   `yaml:"sources"`
	Fetch     FetchConfig     `yaml:"fetch,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Snapshots SnapshotsConfig `yaml:"snapshots,omitempty"`
	Trend     TrendConfig     `yaml:"trend,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty"`
	Daemon    *DaemonConfig   `yaml:"daemon,omitempty"`
	Output    OutputConfig    `yaml:"output,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// Load reads a configuration file, expands environment references,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	// Load .env if present. Existing process env always wins.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, trackerrs.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} references in the YAML content before parsing.
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Version != "" && !strings.HasPrefix(config.Version, "1.") {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected 1.x)", config.Version)
	}

	if err := applyDefaults(&config); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := resolveCredentials(&config); err != nil {
		return nil, err
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Version:  "1.0",
		Projects: []string{"PAY", "CHECKOUT"},
		Sources: SourcesConfig{
			Primary: SourceConfig{
				Name:    "legacy-tms",
				BaseURL: "https://legacy.example.com/api/v2",
				Auth: &AuthConfig{
					Type:  AuthTypeToken,
					Token: "${MIGRATRACK_PRIMARY_TOKEN}",
				},
				PageSize: 200,
			},
			Secondary: SourceConfig{
				Name:    "target-tms",
				BaseURL: "https://target.example.com/api/v1",
				Auth: &AuthConfig{
					Type:  AuthTypeToken,
					Token: "${MIGRATRACK_SECONDARY_TOKEN}",
				},
				PageSize: 200,
			},
		},
		Fetch: FetchConfig{
			Timeout:      "30s",
			MaxAttempts:  3,
			Backoff:      RetryBackoffExponential,
			InitialDelay: "2s",
			MaxDelay:     "30s",
			MaxRecords:   10000,
		},
		Cache: CacheConfig{
			TTL: "5m",
		},
		Snapshots: SnapshotsConfig{
			Directory: "./snapshots",
		},
		Trend: TrendConfig{
			WindowDays: 30,
			Samples:    7,
		},
		History: HistoryConfig{
			Path: "./migratrack.db",
		},
		Events: EventsConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "migratrack",
			Stream:        "MIGRATRACK",
		},
		Daemon: &DaemonConfig{
			Interval:    "1h",
			HTTPAddr:    ":8080",
			MetricsPath: "/metrics",
			HealthPath:  "/healthz",
		},
		Output: OutputConfig{
			Format:    FormatTable,
			Directory: "./reports",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
