package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	trackerrs "github.com/qaops/migratrack/internal/errors"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs validation in order of dependencies.
func (cv *configurationValidator) validate() error {
	if err := cv.validateProjects(); err != nil {
		return err
	}
	if err := cv.validateSources(); err != nil {
		return err
	}
	if err := cv.validateFetch(); err != nil {
		return err
	}
	if err := cv.validateCache(); err != nil {
		return err
	}
	if err := cv.validateTrend(); err != nil {
		return err
	}
	if err := cv.validateEvents(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateProjects() error {
	if len(cv.config.Projects) == 0 {
		return errors.New("at least one project must be configured")
	}
	seen := make(map[string]bool)
	for _, p := range cv.config.Projects {
		if p == "" {
			return errors.New("project key cannot be empty")
		}
		if seen[p] {
			return fmt.Errorf("duplicate project key: %s", p)
		}
		seen[p] = true
	}
	return nil
}

func (cv *configurationValidator) validateSources() error {
	for _, role := range Roles() {
		src := cv.config.Sources.ByRole(role)
		if src.BaseURL == "" {
			return trackerrs.ConfigRequired(fmt.Sprintf("sources.%s.base_url", role))
		}
		u, err := url.Parse(src.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("source %s: invalid base_url: %s", role, src.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %s: base_url scheme must be http or https, got %s", role, u.Scheme)
		}
		if src.Auth != nil && !src.Auth.IsZero() {
			switch src.Auth.Type {
			case AuthTypeToken, AuthTypeBasic:
			default:
				return fmt.Errorf("source %s: unsupported auth type: %s", role, src.Auth.Type)
			}
		}
		if src.PageSize < 1 || src.PageSize > 1000 {
			return fmt.Errorf("source %s: page_size must be between 1 and 1000, got %d", role, src.PageSize)
		}
	}
	return nil
}

func (cv *configurationValidator) validateFetch() error {
	f := cv.config.Fetch

	switch f.Backoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return fmt.Errorf("invalid fetch.backoff: %s (allowed: fixed|linear|exponential)", f.Backoff)
	}

	if f.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got %d", f.MaxAttempts)
	}

	timeout, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return fmt.Errorf("invalid fetch.timeout: %s: %w", f.Timeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", f.Timeout)
	}

	initDur, err := time.ParseDuration(f.InitialDelay)
	if err != nil {
		return fmt.Errorf("invalid fetch.initial_delay: %s: %w", f.InitialDelay, err)
	}
	maxDur, err := time.ParseDuration(f.MaxDelay)
	if err != nil {
		return fmt.Errorf("invalid fetch.max_delay: %s: %w", f.MaxDelay, err)
	}
	if maxDur < initDur {
		return fmt.Errorf("fetch.max_delay (%s) must be >= fetch.initial_delay (%s)", f.MaxDelay, f.InitialDelay)
	}

	return nil
}

func (cv *configurationValidator) validateCache() error {
	ttl, err := time.ParseDuration(cv.config.Cache.TTL)
	if err != nil {
		return fmt.Errorf("invalid cache.ttl: %s: %w", cv.config.Cache.TTL, err)
	}
	if ttl <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", cv.config.Cache.TTL)
	}
	return nil
}

func (cv *configurationValidator) validateTrend() error {
	if cv.config.Trend.Samples < 2 {
		return fmt.Errorf("trend.samples must be at least 2, got %d", cv.config.Trend.Samples)
	}
	if cv.config.Trend.WindowDays < 1 {
		return fmt.Errorf("trend.window_days must be at least 1, got %d", cv.config.Trend.WindowDays)
	}
	return nil
}

func (cv *configurationValidator) validateEvents() error {
	if !cv.config.Events.Enabled {
		return nil
	}
	if cv.config.Events.URL == "" {
		return trackerrs.ConfigRequired("events.url")
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	if cv.config.Daemon == nil {
		return nil
	}
	interval, err := time.ParseDuration(cv.config.Daemon.Interval)
	if err != nil {
		return fmt.Errorf("invalid daemon.interval: %s: %w", cv.config.Daemon.Interval, err)
	}
	if interval < time.Minute {
		return fmt.Errorf("daemon.interval must be at least 1m, got %s", cv.config.Daemon.Interval)
	}
	return nil
}
