package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, provider.ID("aws"), cfg.DefaultProvider)
	assert.Equal(t, 3, cfg.Failover.ConsecutiveFailures)
	assert.Equal(t, 10*time.Second, cfg.Failover.CheckInterval)
	assert.Equal(t, 5*time.Second, cfg.Health.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drengine.yaml")
	data := `
default_provider: azure
failover:
  check_interval: 15s
  superior_ratio: 1.5
persistence:
  backend: file
  file:
    dir: /var/lib/drengine
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, provider.ID("azure"), cfg.DefaultProvider)
	assert.Equal(t, 15*time.Second, cfg.Failover.CheckInterval)
	assert.InDelta(t, 1.5, cfg.Failover.SuperiorRatio, 1e-9)
	assert.Equal(t, "/var/lib/drengine", cfg.Persistence.File.Dir)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Failover.ConsecutiveFailures)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DRENGINE_DEFAULT_PROVIDER", "gcp")
	t.Setenv("DRENGINE_DB_PORT", "6543")
	t.Setenv("DRENGINE_CHECK_INTERVAL", "20s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, provider.ID("gcp"), cfg.DefaultProvider)
	assert.Equal(t, 6543, cfg.Persistence.Postgres.Port)
	assert.Equal(t, 20*time.Second, cfg.Failover.CheckInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "unknown default provider",
			mutate: func(c *Config) { c.DefaultProvider = "oracle" },
			field:  "default_provider",
		},
		{
			name:   "missing weight entry",
			mutate: func(c *Config) { delete(c.Weights, "gcp") },
			field:  "weights.gcp",
		},
		{
			name: "negative weight",
			mutate: func(c *Config) {
				c.Weights["aws"] = Weights{Reliability: -1}
			},
			field: "weights.aws",
		},
		{
			name: "weight for unknown provider",
			mutate: func(c *Config) {
				c.Weights["oracle"] = Weights{}
			},
			field: "weights.oracle",
		},
		{
			name:   "unknown persistence backend",
			mutate: func(c *Config) { c.Persistence.Backend = "redis" },
			field:  "persistence.backend",
		},
		{
			name:   "unknown performance source",
			mutate: func(c *Config) { c.Performance.Source = "statsd" },
			field:  "performance.source",
		},
		{
			name:   "file source without path",
			mutate: func(c *Config) { c.Performance.Source = "file" },
			field:  "performance.file.path",
		},
		{
			name:   "zero threshold",
			mutate: func(c *Config) { c.Failover.ConsecutiveFailures = 0 },
			field:  "failover.consecutive_failures",
		},
		{
			name:   "archive without bucket",
			mutate: func(c *Config) { c.Archive.Enabled = true },
			field:  "archive.bucket",
		},
		{
			name: "webhook without scheme",
			mutate: func(c *Config) {
				c.Notify.Webhooks = []WebhookConfig{{URL: "hooks.example.com/dr"}}
			},
			field: "notify.webhooks[0].url",
		},
		{
			name:   "duplicate providers",
			mutate: func(c *Config) { c.Providers = append(c.Providers, c.Providers[0]) },
			field:  "providers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("DRENGINE_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("DRENGINE_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("DRENGINE_TEST_UNSET", "fallback"))
}
