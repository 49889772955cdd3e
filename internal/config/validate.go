package config

import (
	"fmt"
	"net/url"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// ConfigError reports an invalid or inconsistent configuration value.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	cat, err := c.Catalog()
	if err != nil {
		return err
	}

	if !cat.Has(c.DefaultProvider) {
		return invalid("default_provider", "unknown provider %q", c.DefaultProvider)
	}

	if err := ValidateWeights(cat, c.Weights); err != nil {
		return err
	}

	for _, p := range c.Providers {
		if p.HealthEndpoint == "" {
			continue
		}
		if _, err := url.ParseRequestURI(p.HealthEndpoint); err != nil {
			return invalid("providers."+string(p.ID)+".health_endpoint", "%v", err)
		}
	}

	f := c.Failover
	switch {
	case f.CheckInterval <= 0:
		return invalid("failover.check_interval", "must be positive")
	case f.ConsecutiveFailures < 1:
		return invalid("failover.consecutive_failures", "must be at least 1")
	case f.RecoveryTime < 0:
		return invalid("failover.recovery_time", "must not be negative")
	case f.SuperiorRatio < 1:
		return invalid("failover.superior_ratio", "must be at least 1")
	}

	if c.Health.Interval <= 0 {
		return invalid("health.interval", "must be positive")
	}
	if c.Health.Timeout <= 0 {
		return invalid("health.timeout", "must be positive")
	}

	switch c.Performance.Source {
	case "synthetic":
	case "file":
		if c.Performance.File.Path == "" {
			return invalid("performance.file.path", "required for file source")
		}
	case "prometheus":
		if c.Performance.Prometheus.URL == "" {
			return invalid("performance.prometheus.url", "required for prometheus source")
		}
	default:
		return invalid("performance.source", "unknown source %q", c.Performance.Source)
	}
	if c.Performance.Interval <= 0 {
		return invalid("performance.interval", "must be positive")
	}

	switch c.Persistence.Backend {
	case "file":
		if c.Persistence.File.Dir == "" {
			return invalid("persistence.file.dir", "required for file backend")
		}
	case "postgres":
		if c.Persistence.Postgres.Host == "" {
			return invalid("persistence.postgres.host", "required for postgres backend")
		}
	case "dual":
		if c.Persistence.File.Dir == "" || c.Persistence.Postgres.Host == "" {
			return invalid("persistence", "dual backend needs both file.dir and postgres.host")
		}
	default:
		return invalid("persistence.backend", "unknown backend %q", c.Persistence.Backend)
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return invalid("archive.bucket", "required when archive is enabled")
		}
		if c.Archive.Interval <= 0 {
			return invalid("archive.interval", "must be positive")
		}
	}

	for i, wh := range c.Notify.Webhooks {
		u, err := url.ParseRequestURI(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid(fmt.Sprintf("notify.webhooks[%d].url", i), "must be an http(s) URL")
		}
	}
	if len(c.Notify.Webhooks) > 0 && c.Notify.MaxRetries < 1 {
		return invalid("notify.max_retries", "must be at least 1")
	}

	return nil
}

// ValidateWeights requires a non-negative weight entry for every provider
// and rejects entries for unknown providers.
func ValidateWeights(cat *provider.Catalog, weights map[provider.ID]Weights) error {
	for _, id := range cat.IDs() {
		w, ok := weights[id]
		if !ok {
			return invalid("weights."+string(id), "missing weight entry")
		}
		if w.Reliability < 0 || w.Performance < 0 || w.Cost < 0 {
			return invalid("weights."+string(id), "weights must not be negative")
		}
	}
	for id := range weights {
		if !cat.Has(id) {
			return invalid("weights."+string(id), "unknown provider")
		}
	}
	return nil
}
