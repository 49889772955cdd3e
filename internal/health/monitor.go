package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Recorder persists a round of probe results. Failures are logged by the
// monitor and never affect in-memory state.
type Recorder interface {
	RecordHealth(ctx context.Context, samples map[provider.ID]Sample) error
}

// Monitor probes providers and owns their health histories.
type Monitor struct {
	catalog        *provider.Catalog
	prober         Prober
	recorder       Recorder
	metrics        *metrics.Metrics
	logger         *zap.Logger
	timeout        time.Duration
	persistTimeout time.Duration
	now            func() time.Time

	mu      sync.RWMutex
	history map[provider.ID]History
}

// MonitorOption configures the monitor
type MonitorOption func(*Monitor)

// WithProbeTimeout bounds each probe
func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.timeout = d }
}

// WithRecorder persists each probe round
func WithRecorder(r Recorder, timeout time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.recorder = r
		if timeout > 0 {
			m.persistTimeout = timeout
		}
	}
}

// WithMetrics records probe metrics
func WithMetrics(mt *metrics.Metrics) MonitorOption {
	return func(m *Monitor) { m.metrics = mt }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a new health monitor
func NewMonitor(catalog *provider.Catalog, prober Prober, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		catalog:        catalog,
		prober:         prober,
		logger:         logger.Named("health"),
		timeout:        5 * time.Second,
		persistTimeout: 5 * time.Second,
		now:            time.Now,
		history:        make(map[provider.ID]History, catalog.Len()),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Probe checks one provider. It never fails: transport errors, non-200
// responses and timeouts all produce an unhealthy sample.
func (m *Monitor) Probe(ctx context.Context, id provider.ID) Sample {
	prov, ok := m.catalog.Get(id)
	if !ok {
		return Unhealthy(id, m.now(), "unknown provider")
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- m.prober.Probe(probeCtx, prov)
	}()

	var res Result
	select {
	case res = <-done:
	case <-probeCtx.Done():
		res = Result{Err: fmt.Errorf("timeout after %v", m.timeout)}
	}
	elapsed := time.Since(start)

	sample := Sample{
		Provider:  id,
		Timestamp: m.now(),
		Healthy:   res.Healthy && res.Err == nil,
	}
	if res.Err != nil {
		sample.Error = res.Err.Error()
	} else {
		sample.ResponseTime = &elapsed
	}
	if res.StatusCode != 0 {
		code := res.StatusCode
		sample.StatusCode = &code
		if !sample.Healthy && sample.Error == "" {
			sample.Error = fmt.Sprintf("HTTP %d", code)
		}
	}

	if m.metrics != nil {
		m.metrics.RecordProbe(string(id), elapsed.Seconds(), sample.Healthy)
	}
	return sample
}

// RecordAndAppend appends a sample to its provider's history.
func (m *Monitor) RecordAndAppend(s Sample) {
	if !m.catalog.Has(s.Provider) {
		m.logger.Warn("ignoring sample for unknown provider", zap.String("provider", string(s.Provider)))
		return
	}

	m.mu.Lock()
	m.history[s.Provider] = m.history[s.Provider].Append(s)
	m.mu.Unlock()
}

// ProbeAll probes every provider concurrently, appends the results and
// hands them to the recorder. When ctx is cancelled before the round
// completes the results are returned but neither appended nor persisted.
func (m *Monitor) ProbeAll(ctx context.Context) map[provider.ID]Sample {
	ids := m.catalog.IDs()
	results := make(map[provider.ID]Sample, len(ids))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(id provider.ID) {
			defer wg.Done()
			s := m.Probe(ctx, id)
			mu.Lock()
			results[id] = s
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	// a cancelled round reports the shutdown, not the providers
	if ctx.Err() != nil {
		m.logger.Debug("probe round cancelled, discarding results", zap.Error(ctx.Err()))
		return results
	}

	for _, id := range ids {
		s := results[id]
		m.RecordAndAppend(s)
		if !s.Healthy {
			m.logger.Warn("provider unhealthy",
				zap.String("provider", string(id)),
				zap.String("error", s.Error),
				zap.Int("consecutive_failures", m.ConsecutiveFailures(id)))
		}
	}

	if m.recorder != nil {
		pctx, cancel := context.WithTimeout(ctx, m.persistTimeout)
		defer cancel()
		if err := m.recorder.RecordHealth(pctx, results); err != nil {
			m.logger.Error("failed to persist health results", zap.Error(err))
			if m.metrics != nil {
				m.metrics.PersistenceErrors.WithLabelValues("health").Inc()
			}
		}
	}

	return results
}

// Run is the body of the periodic health task.
func (m *Monitor) Run(ctx context.Context) error {
	m.ProbeAll(ctx)
	return nil
}

// CurrentSnapshot returns the newest sample of every provider that has one.
func (m *Monitor) CurrentSnapshot() map[provider.ID]Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[provider.ID]Sample, len(m.history))
	for id, h := range m.history {
		if s, ok := h.Latest(); ok {
			out[id] = s
		}
	}
	return out
}

// History returns a copy of a provider's history, oldest first.
func (m *Monitor) History(id provider.ID) History {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[id]
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Histories returns copies of all histories.
func (m *Monitor) Histories() map[provider.ID]History {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[provider.ID]History, len(m.history))
	for id, h := range m.history {
		c := make(History, len(h))
		copy(c, h)
		out[id] = c
	}
	return out
}

// ConsecutiveFailures returns the trailing unhealthy count for id.
func (m *Monitor) ConsecutiveFailures(id provider.ID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history[id].ConsecutiveFailures()
}

// Inject appends samples to id's history in one step and returns the
// history as it was before. Every injected sample must carry a marker in
// its Error field so RevertInjected can find it again.
func (m *Monitor) Inject(id provider.ID, samples ...Sample) History {
	if !m.catalog.Has(id) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.history[id]
	base := make(History, len(prev))
	copy(base, prev)

	h := prev
	for _, s := range samples {
		s.Provider = id
		h = h.Append(s)
	}
	m.history[id] = h
	return base
}

// RevertInjected removes the samples marked with marker from id's history.
// The history is rebuilt on base, the value Inject returned, followed by
// every unmarked sample recorded since the injection, so probe results
// that arrived in between survive and samples evicted by the injection
// come back.
func (m *Monitor) RevertInjected(id provider.ID, base History, marker string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.history[id]
	first := -1
	for i, s := range cur {
		if s.Error == marker {
			first = i
			break
		}
	}

	if first < 0 {
		// already evicted by newer samples
		return
	}

	var out History
	for _, s := range base {
		out = out.Append(s)
	}
	for _, s := range cur[first:] {
		if s.Error != marker {
			out = out.Append(s)
		}
	}

	if len(out) == 0 {
		delete(m.history, id)
		return
	}
	m.history[id] = out
}
