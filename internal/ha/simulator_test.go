package ha

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

func newTestSimulator(f *fixture) *Simulator {
	return NewSimulator(f.ctrl, f.monitor, f.feed, f.metrics, zap.NewNop())
}

func TestParseScenario(t *testing.T) {
	tests := []struct {
		in      string
		want    Scenario
		wantErr bool
	}{
		{"provider_failure", ScenarioProviderFailure, false},
		{"performance_degradation", ScenarioPerformanceDegradation, false},
		{"network_outage", ScenarioNetworkOutage, false},
		{"random", ScenarioRandom, false},
		{"meteor_strike", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScenario(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownScenario)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimulator_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)
	before := f.monitor.History("aws")

	res, err := sim.Execute(context.Background(), ScenarioProviderFailure)
	require.NoError(t, err)

	assert.True(t, res.FailoverTriggered)
	assert.True(t, res.ExpectedFailover)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Error)
	assert.Equal(t, provider.ID("aws"), res.Target)
	assert.Equal(t, provider.ID("aws"), res.From)
	assert.Equal(t, provider.ID("gcp"), res.To)

	// the failover stands, the injected samples do not
	assert.Equal(t, provider.ID("gcp"), f.ctrl.ActiveProvider().Current)
	assert.Equal(t, before, f.monitor.History("aws"))
	assert.Equal(t, 0, f.monitor.ConsecutiveFailures("aws"))

	events, err := f.ctrl.RecentFailoverEvents(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Provider unhealthy for 4 consecutive checks", events[0].Reason)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Simulations.WithLabelValues("provider_failure", "pass")))
}

func TestSimulator_PerformanceDegradation(t *testing.T) {
	f := newFixture(t)
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)
	before, ok := f.feed.Get("aws")
	require.True(t, ok)

	triggered, err := sim.Run(context.Background(), ScenarioPerformanceDegradation)
	require.NoError(t, err)
	assert.True(t, triggered)

	after, ok := f.feed.Get("aws")
	require.True(t, ok)
	assert.Equal(t, before, after)

	events, err := f.ctrl.RecentFailoverEvents(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ReasonDegradation, events[0].Reason)
}

func TestSimulator_PerformanceDegradationWithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	f.healthy("azure", "gcp")
	for i := 0; i < health.HistorySize; i++ {
		f.monitor.RecordAndAppend(health.Sample{Provider: "aws", Healthy: true, Timestamp: f.now})
	}
	sim := newTestSimulator(f)

	_, err := sim.Execute(context.Background(), ScenarioPerformanceDegradation)
	require.NoError(t, err)

	_, ok := f.feed.Get("aws")
	assert.False(t, ok, "snapshot absence should be restored")
}

func TestSimulator_NetworkOutage(t *testing.T) {
	f := newFixture(t)
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)

	res, err := sim.Execute(context.Background(), ScenarioNetworkOutage)
	require.NoError(t, err)

	assert.NotEqual(t, provider.ID("aws"), res.Target)
	assert.False(t, res.ExpectedFailover)
	assert.False(t, res.FailoverTriggered)
	assert.True(t, res.Passed)
	assert.Equal(t, provider.ID("aws"), f.ctrl.ActiveProvider().Current)
	assert.Equal(t, 0, f.monitor.ConsecutiveFailures(res.Target))
}

func TestSimulator_FailedExpectation(t *testing.T) {
	f := newFixture(t)
	// only aws has data, so there is nowhere to go
	f.healthy("aws")
	sim := newTestSimulator(f)

	res, err := sim.Execute(context.Background(), ScenarioProviderFailure)
	assert.ErrorIs(t, err, ErrNoEligibleTarget)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Error, "expected failover but none occurred")
	assert.Contains(t, res.Error, ErrNoEligibleTarget.Error())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Simulations.WithLabelValues("provider_failure", "fail")))
}

func TestSimulator_Random(t *testing.T) {
	f := newFixture(t)
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)

	res, err := sim.Execute(context.Background(), ScenarioRandom)
	require.NoError(t, err)
	assert.Contains(t, Scenarios, res.Scenario)
}

func TestSimulator_UnknownScenario(t *testing.T) {
	f := newFixture(t)
	sim := newTestSimulator(f)

	_, err := sim.Execute(context.Background(), Scenario("meteor_strike"))
	assert.ErrorIs(t, err, ErrUnknownScenario)
	assert.Empty(t, sim.Results())
}

// panickyHealth panics on Histories once armed.
type panickyHealth struct {
	*health.Monitor
	armed atomic.Bool
}

func (p *panickyHealth) Histories() map[provider.ID]health.History {
	if p.armed.Load() {
		panic("health view exploded")
	}
	return p.Monitor.Histories()
}

func TestSimulator_RestoresStateOnPanic(t *testing.T) {
	var ph *panickyHealth
	f := newFixture(t, withHealthView(func(m *health.Monitor) HealthView {
		ph = &panickyHealth{Monitor: m}
		return ph
	}))
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)

	histBefore := f.monitor.History("aws")
	perfBefore, _ := f.feed.Get("aws")
	ph.armed.Store(true)

	assert.Panics(t, func() {
		_, _ = sim.Execute(context.Background(), ScenarioProviderFailure)
	})
	assert.Panics(t, func() {
		_, _ = sim.Execute(context.Background(), ScenarioPerformanceDegradation)
	})

	ph.armed.Store(false)
	assert.Equal(t, histBefore, f.monitor.History("aws"))
	perfAfter, _ := f.feed.Get("aws")
	assert.Equal(t, perfBefore, perfAfter)

	// the controller and simulator are still usable
	assert.Equal(t, provider.ID("aws"), f.ctrl.ActiveProvider().Current)
	_, err := sim.Execute(context.Background(), ScenarioNetworkOutage)
	assert.NoError(t, err)
}

// liveHealth records a real probe failure for each of ids the first time
// the controller reads histories after being armed.
type liveHealth struct {
	*health.Monitor
	ids   []provider.ID
	armed atomic.Bool
}

func (l *liveHealth) Histories() map[provider.ID]health.History {
	if l.armed.CompareAndSwap(true, false) {
		for _, id := range l.ids {
			l.Monitor.RecordAndAppend(health.Unhealthy(id, time.Now(), "connection reset"))
		}
	}
	return l.Monitor.Histories()
}

func TestSimulator_KeepsSamplesRecordedDuringTick(t *testing.T) {
	tests := []struct {
		scenario Scenario
		failing  []provider.ID
	}{
		{ScenarioProviderFailure, []provider.ID{"aws"}},
		// bystanders only, so the active provider stays put
		{ScenarioNetworkOutage, []provider.ID{"azure", "gcp"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.scenario), func(t *testing.T) {
			var lh *liveHealth
			f := newFixture(t, withHealthView(func(m *health.Monitor) HealthView {
				lh = &liveHealth{Monitor: m}
				return lh
			}))
			lh.ids = tt.failing
			f.healthy("aws", "azure", "gcp")
			sim := newTestSimulator(f)

			lh.armed.Store(true)
			res, err := sim.Execute(context.Background(), tt.scenario)
			require.NoError(t, err)
			require.False(t, lh.armed.Load(), "tick did not read histories")

			hist := f.monitor.History(res.Target)
			require.Len(t, hist, health.HistorySize)
			latest, _ := hist.Latest()
			assert.Equal(t, "connection reset", latest.Error)
			assert.Equal(t, 1, f.monitor.ConsecutiveFailures(res.Target))
			for _, s := range hist {
				assert.NotEqual(t, SimulatedFailure, s.Error)
			}
		})
	}
}

func TestSimulator_Report(t *testing.T) {
	f := newFixture(t)
	f.healthy("aws", "azure", "gcp")
	sim := newTestSimulator(f)
	ctx := context.Background()

	_, err := sim.Execute(ctx, ScenarioNetworkOutage)
	require.NoError(t, err)
	_, err = sim.Execute(ctx, ScenarioProviderFailure)
	require.NoError(t, err)

	report := sim.GenerateReport()
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Results, 2)
	assert.Equal(t, ScenarioNetworkOutage, report.Results[0].Scenario)
	assert.Equal(t, ScenarioProviderFailure, report.Results[1].Scenario)
}
