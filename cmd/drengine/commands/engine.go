package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/ha"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/notify"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
	"github.com/FairForge/multicloud-dr/internal/store"
)

// engine is every long-lived component, wired together.
type engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	store      store.Backend
	monitor    *health.Monitor
	feed       *performance.Feed
	fileSource *performance.FileSource
	controller *ha.Controller
	simulator  *ha.Simulator
	archiver   *store.Archiver
	webhooks   *notify.Webhooks
}

func buildEngine(ctx context.Context, cfg *config.Config, log *zap.Logger) (*engine, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, logger: log, metrics: metrics.New()}

	e.store, err = store.Open(ctx, cfg.Persistence, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	e.monitor = health.NewMonitor(cat, health.NewHTTPProber(cfg.Health.Timeout), log,
		health.WithProbeTimeout(cfg.Health.Timeout),
		health.WithRecorder(e.store, cfg.Health.PersistTimeout),
		health.WithMetrics(e.metrics),
	)

	var synthetic *performance.SyntheticSource
	var source performance.Source
	switch cfg.Performance.Source {
	case "synthetic":
		synthetic = performance.NewSyntheticSource(cat, e.monitor, cfg.Performance.Synthetic)
		source = synthetic
	case "file":
		e.fileSource, err = performance.NewFileSource(cfg.Performance.File.Path, log)
		if err != nil {
			e.Close()
			return nil, err
		}
		source = e.fileSource
	case "prometheus":
		source, err = performance.NewPrometheusSource(cat, cfg.Performance.Prometheus, log)
		if err != nil {
			e.Close()
			return nil, err
		}
	default:
		e.Close()
		return nil, &config.ConfigError{Field: "performance.source", Msg: fmt.Sprintf("unknown source %q", cfg.Performance.Source)}
	}
	e.feed = performance.NewFeed(cat, source, e.store, e.metrics, log)

	scorer, err := scoring.NewEngine(cat, cfg.Weights, cfg.Failover.RecoveryTime)
	if err != nil {
		e.Close()
		return nil, err
	}

	var notifier ha.Notifier
	if len(cfg.Notify.Webhooks) > 0 {
		e.webhooks = notify.NewWebhooks(cfg.Notify, log)
		notifier = e.webhooks
	}

	e.controller, err = ha.NewController(ha.Deps{
		Catalog:         cat,
		Health:          e.monitor,
		Performance:     e.feed,
		Scorer:          scorer,
		Store:           e.store,
		Config:          cfg.Failover,
		DefaultProvider: cfg.DefaultProvider,
		Metrics:         e.metrics,
		Notifier:        notifier,
		Logger:          log,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.controller.Restore(ctx)

	if synthetic != nil {
		synthetic.SetActiveFunc(func() provider.ID { return e.controller.ActiveProvider().Current })
	}

	e.simulator = ha.NewSimulator(e.controller, e.monitor, e.feed, e.metrics, log)

	if cfg.Archive.Enabled {
		client, err := store.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("archive client: %w", err)
		}
		e.archiver = store.NewArchiver(e.store, client, cfg.Archive, log)
	}

	return e, nil
}

// warmUp takes one health and performance reading so the first decision
// has data to work with.
func (e *engine) warmUp(ctx context.Context) {
	e.monitor.ProbeAll(ctx)
	if err := e.feed.Refresh(ctx); err != nil {
		e.logger.Warn("initial performance refresh failed", zap.Error(err))
	}
}

// scheduler registers the engine's background tasks.
func (e *engine) scheduler() *ha.Scheduler {
	s := ha.NewScheduler(e.logger, e.metrics)

	s.Add(ha.Task{
		Name:       ha.TaskHealthProbe,
		Interval:   e.cfg.Health.Interval,
		RunOnStart: true,
		Run:        e.monitor.Run,
	})
	s.Add(ha.Task{
		Name:       ha.TaskPerformanceRefresh,
		Interval:   e.cfg.Performance.Interval,
		RunOnStart: true,
		Run:        e.feed.Run,
	})
	s.Add(ha.Task{
		Name:     ha.TaskFailoverTick,
		Interval: e.cfg.Failover.CheckInterval,
		Run:      e.controller.Run,
	})

	if e.fileSource != nil && e.cfg.Performance.File.Watch {
		s.Add(ha.Task{Name: ha.TaskSnapshotWatch, Run: e.fileSource.Watch})
	}
	if e.archiver != nil {
		s.Add(ha.Task{
			Name:     ha.TaskArchive,
			Interval: e.cfg.Archive.Interval,
			Run:      e.archiver.Run,
		})
	}
	return s
}

func (e *engine) Close() {
	if e.webhooks != nil {
		e.webhooks.Wait()
	}
	if e.store == nil {
		return
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close store", zap.Error(err))
	}
}
