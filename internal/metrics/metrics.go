// Package metrics exposes the engine's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drengine"

// Metrics holds all Prometheus instruments of the failover engine. Each
// instance owns its registry so tests can build as many as they need.
type Metrics struct {
	Failovers         *prometheus.CounterVec
	DecisionFailures  prometheus.Counter
	ActiveProvider    *prometheus.GaugeVec
	ProviderScore     *prometheus.GaugeVec
	ProviderHealthy   *prometheus.GaugeVec
	ProbeDuration     *prometheus.HistogramVec
	TaskErrors        *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
	Simulations       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Failovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failovers_total",
				Help:      "Completed failovers by source, target and kind",
			},
			[]string{"from", "to", "kind"},
		),
		DecisionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decision_failures_total",
				Help:      "Triggered failovers that found no eligible target",
			},
		),
		ActiveProvider: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_provider",
				Help:      "1 for the active provider, 0 otherwise",
			},
			[]string{"provider"},
		),
		ProviderScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_score",
				Help:      "Last computed score per provider",
			},
			[]string{"provider"},
		),
		ProviderHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_healthy",
				Help:      "Result of the latest health probe",
			},
			[]string{"provider"},
		),
		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Health probe latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		TaskErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_errors_total",
				Help:      "Failed or panicked iterations of background tasks",
			},
			[]string{"task"},
		),
		PersistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_errors_total",
				Help:      "Failed writes to the event log or active record",
			},
			[]string{"op"},
		),
		Simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_total",
				Help:      "Disaster simulations by scenario and outcome",
			},
			[]string{"scenario", "result"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.Failovers,
		m.DecisionFailures,
		m.ActiveProvider,
		m.ProviderScore,
		m.ProviderHealthy,
		m.ProbeDuration,
		m.TaskErrors,
		m.PersistenceErrors,
		m.Simulations,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetActive marks id as the active provider among ids.
func (m *Metrics) SetActive(active string, ids []string) {
	for _, id := range ids {
		v := 0.0
		if id == active {
			v = 1
		}
		m.ActiveProvider.WithLabelValues(id).Set(v)
	}
}

// RecordFailover counts a completed failover.
func (m *Metrics) RecordFailover(from, to string, manual bool) {
	kind := "automatic"
	if manual {
		kind = "manual"
	}
	m.Failovers.WithLabelValues(from, to, kind).Inc()
}

// RecordProbe records a probe's latency and outcome.
func (m *Metrics) RecordProbe(id string, seconds float64, healthy bool) {
	m.ProbeDuration.WithLabelValues(id).Observe(seconds)
	v := 0.0
	if healthy {
		v = 1
	}
	m.ProviderHealthy.WithLabelValues(id).Set(v)
}

// RecordSimulation counts a simulator run.
func (m *Metrics) RecordSimulation(scenario string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	m.Simulations.WithLabelValues(scenario, result).Inc()
}
