package config

import (
	"os"
	"strconv"
	"time"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// LoadFromEnv applies DRENGINE_* environment overrides
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DRENGINE_DEFAULT_PROVIDER"); v != "" {
		cfg.DefaultProvider = provider.ID(v)
	}

	if v := os.Getenv("DRENGINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("DRENGINE_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("DRENGINE_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}

	if v := os.Getenv("DRENGINE_PERSISTENCE_BACKEND"); v != "" {
		cfg.Persistence.Backend = v
	}
	if v := os.Getenv("DRENGINE_DATA_DIR"); v != "" {
		cfg.Persistence.File.Dir = v
	}

	// Postgres
	pg := &cfg.Persistence.Postgres
	pg.Host = GetEnvOrDefault("DRENGINE_DB_HOST", pg.Host)
	pg.Database = GetEnvOrDefault("DRENGINE_DB_NAME", pg.Database)
	pg.User = GetEnvOrDefault("DRENGINE_DB_USER", pg.User)
	pg.Password = GetEnvOrDefault("DRENGINE_DB_PASSWORD", pg.Password)
	if v := os.Getenv("DRENGINE_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			pg.Port = p
		}
	}

	if v := os.Getenv("DRENGINE_PERFORMANCE_SOURCE"); v != "" {
		cfg.Performance.Source = v
	}
	if v := os.Getenv("DRENGINE_PROMETHEUS_URL"); v != "" {
		cfg.Performance.Prometheus.URL = v
	}

	if v := os.Getenv("DRENGINE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Failover.CheckInterval = d
		}
	}

	// Archive credentials are usually injected rather than committed.
	cfg.Archive.AccessKey = GetEnvOrDefault("DRENGINE_ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = GetEnvOrDefault("DRENGINE_ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
