package ha

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
	"github.com/FairForge/multicloud-dr/internal/store"
)

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	now     time.Time
	catalog *provider.Catalog
	monitor *health.Monitor
	feed    *performance.Feed
	store   store.Store
	metrics *metrics.Metrics
	ctrl    *Controller
}

type fixtureOption func(*fixture, *Deps)

func withStore(s store.Store) fixtureOption {
	return func(f *fixture, d *Deps) { d.Store = s }
}

func withNotifier(n Notifier) fixtureOption {
	return func(f *fixture, d *Deps) { d.Notifier = n }
}

func withHealthView(fn func(m *health.Monitor) HealthView) fixtureOption {
	return func(f *fixture, d *Deps) { d.Health = fn(f.monitor) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := config.Default()
	cat, err := cfg.Catalog()
	require.NoError(t, err)

	f := &fixture{t: t, now: epoch, catalog: cat, metrics: metrics.New()}
	clock := func() time.Time { return f.now }

	noProbe := health.ProberFunc(func(ctx context.Context, p provider.Provider) health.Result {
		return health.Result{}
	})
	f.monitor = health.NewMonitor(cat, noProbe, zap.NewNop(), health.WithClock(clock))
	f.feed = performance.NewFeed(cat, nil, nil, nil, zap.NewNop())

	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	f.store = fs

	engine, err := scoring.NewEngine(cat, cfg.Weights, cfg.Failover.RecoveryTime)
	require.NoError(t, err)

	deps := Deps{
		Catalog:         cat,
		Health:          f.monitor,
		Performance:     f.feed,
		Scorer:          engine,
		Store:           fs,
		Config:          cfg.Failover,
		DefaultProvider: cfg.DefaultProvider,
		Metrics:         f.metrics,
		Logger:          zap.NewNop(),
		Clock:           clock,
	}
	for _, opt := range opts {
		opt(f, &deps)
	}
	f.store = deps.Store

	f.ctrl, err = NewController(deps)
	require.NoError(t, err)
	return f
}

// healthy fills id's history with healthy samples and a good snapshot.
func (f *fixture) healthy(ids ...provider.ID) {
	for _, id := range ids {
		for i := 0; i < health.HistorySize; i++ {
			f.monitor.RecordAndAppend(health.Sample{Provider: id, Healthy: true, Timestamp: f.now})
		}
		f.feed.Set(performance.Snapshot{
			Provider:            id,
			CPUUtilization:      30,
			MemoryUtilization:   35,
			RequestSuccessRate:  99,
			AverageResponseTime: 0.1,
			Timestamp:           f.now,
		})
	}
}

func (f *fixture) fail(id provider.ID, n int) {
	for i := 0; i < n; i++ {
		f.monitor.RecordAndAppend(health.Unhealthy(id, f.now, "connection refused"))
	}
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}
