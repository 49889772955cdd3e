package performance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Metric names accepted in the prometheus.queries configuration map.
const (
	MetricCPU          = "cpu_utilization"
	MetricMemory       = "memory_utilization"
	MetricDiskIOPS     = "disk_iops"
	MetricThroughput   = "network_throughput"
	MetricSuccessRate  = "request_success_rate"
	MetricResponseTime = "average_response_time"
)

// DefaultQueries are used for metrics missing from configuration.
// "{provider}" is replaced with the provider id.
var DefaultQueries = map[string]string{
	MetricCPU:          `100 * (1 - avg(rate(node_cpu_seconds_total{mode="idle",provider="{provider}"}[5m])))`,
	MetricMemory:       `100 * (1 - avg(node_memory_MemAvailable_bytes{provider="{provider}"} / node_memory_MemTotal_bytes{provider="{provider}"}))`,
	MetricDiskIOPS:     `sum(rate(node_disk_reads_completed_total{provider="{provider}"}[5m]) + rate(node_disk_writes_completed_total{provider="{provider}"}[5m]))`,
	MetricThroughput:   `sum(rate(node_network_transmit_bytes_total{provider="{provider}"}[5m])) * 8 / 1e6`,
	MetricSuccessRate:  `100 * (1 - sum(rate(http_requests_total{status_code=~"5..",provider="{provider}"}[5m])) / sum(rate(http_requests_total{provider="{provider}"}[5m])))`,
	MetricResponseTime: `sum(rate(http_request_duration_seconds_sum{provider="{provider}"}[5m])) / sum(rate(http_request_duration_seconds_count{provider="{provider}"}[5m]))`,
}

// PrometheusSource builds snapshots from PromQL instant queries.
type PrometheusSource struct {
	client  v1.API
	catalog *provider.Catalog
	queries map[string]string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPrometheusSource connects to the Prometheus HTTP API.
func NewPrometheusSource(catalog *provider.Catalog, cfg config.PrometheusConfig, logger *zap.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: cfg.URL})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return newPrometheusSource(v1.NewAPI(client), catalog, cfg, logger), nil
}

func newPrometheusSource(client v1.API, catalog *provider.Catalog, cfg config.PrometheusConfig, logger *zap.Logger) *PrometheusSource {
	queries := make(map[string]string, len(DefaultQueries))
	for k, v := range DefaultQueries {
		queries[k] = v
	}
	for k, v := range cfg.Queries {
		queries[k] = v
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PrometheusSource{
		client:  client,
		catalog: catalog,
		queries: queries,
		timeout: timeout,
		logger:  logger.Named("performance-prometheus"),
	}
}

// Fetch implements Source. A provider whose queries fail is left out of the
// result so its previous snapshot stays current.
func (p *PrometheusSource) Fetch(ctx context.Context) (map[provider.ID]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	now := time.Now()
	out := make(map[provider.ID]Snapshot, p.catalog.Len())
	var lastErr error

	for _, id := range p.catalog.IDs() {
		snap, err := p.fetchProvider(ctx, id, now)
		if err != nil {
			p.logger.Warn("prometheus fetch failed", zap.String("provider", string(id)), zap.Error(err))
			lastErr = err
			continue
		}
		out[id] = snap
	}

	if len(out) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoData
	}
	return out, nil
}

func (p *PrometheusSource) fetchProvider(ctx context.Context, id provider.ID, now time.Time) (Snapshot, error) {
	snap := Snapshot{Provider: id, Timestamp: now}

	fields := []struct {
		metric string
		dst    *float64
	}{
		{MetricCPU, &snap.CPUUtilization},
		{MetricMemory, &snap.MemoryUtilization},
		{MetricDiskIOPS, &snap.DiskIOPS},
		{MetricThroughput, &snap.NetworkThroughput},
		{MetricSuccessRate, &snap.RequestSuccessRate},
		{MetricResponseTime, &snap.AverageResponseTime},
	}

	for _, f := range fields {
		q := strings.ReplaceAll(p.queries[f.metric], "{provider}", string(id))
		v, err := p.query(ctx, q, now)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", f.metric, err)
		}
		*f.dst = v
	}
	return snap, nil
}

func (p *PrometheusSource) query(ctx context.Context, q string, now time.Time) (float64, error) {
	result, warnings, err := p.client.Query(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("prometheus query: %w", err)
	}
	if len(warnings) > 0 {
		p.logger.Debug("prometheus warnings", zap.Strings("warnings", warnings))
	}

	switch v := result.(type) {
	case model.Vector:
		if len(v) == 0 {
			return 0, ErrNoData
		}
		return float64(v[0].Value), nil
	case *model.Scalar:
		return float64(v.Value), nil
	default:
		return 0, fmt.Errorf("unexpected result type %s", result.Type())
	}
}
