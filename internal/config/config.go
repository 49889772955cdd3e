package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Config is the complete engine configuration.
type Config struct {
	Providers       []provider.Provider     `yaml:"providers"`
	DefaultProvider provider.ID             `yaml:"default_provider"`
	Weights         map[provider.ID]Weights `yaml:"weights"`
	Failover        FailoverConfig          `yaml:"failover"`
	Health          HealthConfig            `yaml:"health"`
	Performance     PerformanceConfig       `yaml:"performance"`
	Persistence     PersistenceConfig       `yaml:"persistence"`
	Archive         ArchiveConfig           `yaml:"archive"`
	API             APIConfig               `yaml:"api"`
	Notify          NotifyConfig            `yaml:"notify"`
	Logging         LoggingConfig           `yaml:"logging"`
}

// Weights scale the reliability, performance and cost terms of a
// provider's score.
type Weights struct {
	Reliability float64 `yaml:"reliability" json:"reliability"`
	Performance float64 `yaml:"performance" json:"performance"`
	Cost        float64 `yaml:"cost" json:"cost"`
}

type FailoverConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval"`
	ConsecutiveFailures int           `yaml:"consecutive_failures"`
	RecoveryTime        time.Duration `yaml:"recovery_time"`
	SuperiorRatio       float64       `yaml:"superior_ratio"`
	SuperiorMinScore    float64       `yaml:"superior_min_score"`
	Degradation         Degradation   `yaml:"degradation"`
}

// Degradation holds the thresholds of the performance trigger.
type Degradation struct {
	MaxResponseTime float64 `yaml:"max_response_time"` // seconds
	MinSuccessRate  float64 `yaml:"min_success_rate"`
	MaxCPU          float64 `yaml:"max_cpu"`
	MaxMemory       float64 `yaml:"max_memory"`
}

type HealthConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Timeout        time.Duration `yaml:"timeout"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
}

type PerformanceConfig struct {
	Source     string           `yaml:"source"` // synthetic, file, prometheus
	Interval   time.Duration    `yaml:"interval"`
	File       FileSourceConfig `yaml:"file"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Synthetic  SyntheticConfig  `yaml:"synthetic"`
}

type FileSourceConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// PrometheusConfig describes the PromQL queries used to build snapshots.
// "{provider}" in a query is replaced with the provider id.
type PrometheusConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Queries map[string]string `yaml:"queries"`
}

type SyntheticConfig struct {
	DegradedChance float64 `yaml:"degraded_chance"`
	Seed           int64   `yaml:"seed"`
}

type PersistenceConfig struct {
	Backend  string          `yaml:"backend"` // file, postgres, dual
	File     FileStoreConfig `yaml:"file"`
	Postgres PostgresConfig  `yaml:"postgres"`
}

type FileStoreConfig struct {
	Dir string `yaml:"dir"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ArchiveConfig controls the periodic off-site copy of the event log.
type ArchiveConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Region    string        `yaml:"region"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	PathStyle bool          `yaml:"path_style"`
	Limit     int           `yaml:"limit"`
}

type APIConfig struct {
	Addr      string  `yaml:"addr"`
	JWTSecret string  `yaml:"jwt_secret"`
	RateLimit float64 `yaml:"rate_limit"` // mutating requests per second
	Burst     int     `yaml:"burst"`
}

// NotifyConfig lists the webhooks told about failovers.
type NotifyConfig struct {
	Webhooks      []WebhookConfig `yaml:"webhooks"`
	MaxRetries    int             `yaml:"max_retries"`
	RetryInterval time.Duration   `yaml:"retry_interval"`
	Timeout       time.Duration   `yaml:"timeout"`
}

type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Secret  string            `yaml:"secret"`
	Events  []string          `yaml:"events"` // empty or "*" matches everything
	Headers map[string]string `yaml:"headers"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // json or console
}

// Default returns a complete configuration for the stock providers.
func Default() *Config {
	return &Config{
		Providers:       provider.Defaults(),
		DefaultProvider: "aws",
		Weights: map[provider.ID]Weights{
			"aws":   {Reliability: 0.6, Performance: 0.7, Cost: 0.5},
			"azure": {Reliability: 0.5, Performance: 0.6, Cost: 0.6},
			"gcp":   {Reliability: 0.55, Performance: 0.5, Cost: 0.7},
		},
		Failover: FailoverConfig{
			CheckInterval:       10 * time.Second,
			ConsecutiveFailures: 3,
			RecoveryTime:        60 * time.Second,
			SuperiorRatio:       1.25,
			SuperiorMinScore:    60,
			Degradation: Degradation{
				MaxResponseTime: 0.5,
				MinSuccessRate:  95,
				MaxCPU:          85,
				MaxMemory:       80,
			},
		},
		Health: HealthConfig{
			Interval:       30 * time.Second,
			Timeout:        5 * time.Second,
			PersistTimeout: 5 * time.Second,
		},
		Performance: PerformanceConfig{
			Source:   "synthetic",
			Interval: 60 * time.Second,
			Prometheus: PrometheusConfig{
				Timeout: 10 * time.Second,
			},
			Synthetic: SyntheticConfig{DegradedChance: 0.05},
		},
		Persistence: PersistenceConfig{
			Backend: "file",
			File:    FileStoreConfig{Dir: "data"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "drengine",
				User:     "drengine",
				SSLMode:  "disable",
			},
		},
		Archive: ArchiveConfig{
			Interval: time.Hour,
			Prefix:   "failover-events/",
			Region:   "us-east-1",
			Limit:    1000,
		},
		API: APIConfig{
			Addr:      ":8080",
			RateLimit: 1,
			Burst:     5,
		},
		Notify: NotifyConfig{
			MaxRetries:    3,
			RetryInterval: time.Second,
			Timeout:       10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads a YAML file on top of the defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: "file", Msg: err.Error()}
		}
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Catalog builds the provider catalog described by the configuration.
func (c *Config) Catalog() (*provider.Catalog, error) {
	cat, err := provider.NewCatalog(c.Providers)
	if err != nil {
		return nil, &ConfigError{Field: "providers", Msg: err.Error()}
	}
	return cat, nil
}
