package ha

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/notify"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
	"github.com/FairForge/multicloud-dr/internal/store"
)

// ErrNoEligibleTarget means a failover was triggered but no other provider
// could take over. Active state is left unchanged.
var ErrNoEligibleTarget = errors.New("no eligible failover target")

// Event origins recorded in FailoverEvent.TriggeredBy.
const (
	TriggeredBySystem = "system"
	TriggeredByUser   = "user"
)

// HealthView is the health state the controller decides on.
type HealthView interface {
	CurrentSnapshot() map[provider.ID]health.Sample
	Histories() map[provider.ID]health.History
}

// PerformanceView is the performance state the controller decides on.
type PerformanceView interface {
	Current() map[provider.ID]performance.Snapshot
}

// Notifier is told about completed and failed failovers.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// ActiveState is the provider currently serving traffic.
type ActiveState struct {
	Current   provider.ID `json:"current"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Deps wires a controller.
type Deps struct {
	Catalog         *provider.Catalog
	Health          HealthView
	Performance     PerformanceView
	Scorer          *scoring.Engine
	Store           store.Store
	Config          config.FailoverConfig
	DefaultProvider provider.ID
	Metrics         *metrics.Metrics
	Notifier        Notifier
	Logger          *zap.Logger
	Clock           func() time.Time
}

// Controller owns the active provider and decides failovers. Every
// read-decide-write-append sequence runs under one mutex.
type Controller struct {
	catalog     *provider.Catalog
	health      HealthView
	performance PerformanceView
	scorer      *scoring.Engine
	store       store.Store
	cfg         config.FailoverConfig
	defaultID   provider.ID
	metrics     *metrics.Metrics
	notifier    Notifier
	logger      *zap.Logger
	now         func() time.Time

	mu           sync.Mutex
	active       ActiveState
	lastFailover map[provider.ID]time.Time
}

// NewController creates a controller with the default provider active.
// Call Restore to load the persisted active provider.
func NewController(d Deps) (*Controller, error) {
	if d.Catalog == nil || d.Health == nil || d.Performance == nil || d.Scorer == nil || d.Store == nil {
		return nil, fmt.Errorf("controller: missing dependency")
	}
	if !d.Catalog.Has(d.DefaultProvider) {
		return nil, &config.ConfigError{Field: "default_provider", Msg: fmt.Sprintf("unknown provider %q", d.DefaultProvider)}
	}
	if d.Config.ConsecutiveFailures < 1 {
		return nil, &config.ConfigError{Field: "failover.consecutive_failures", Msg: "must be at least 1"}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}

	c := &Controller{
		catalog:      d.Catalog,
		health:       d.Health,
		performance:  d.Performance,
		scorer:       d.Scorer,
		store:        d.Store,
		cfg:          d.Config,
		defaultID:    d.DefaultProvider,
		metrics:      d.Metrics,
		notifier:     d.Notifier,
		logger:       d.Logger.Named("failover"),
		now:          d.Clock,
		lastFailover: make(map[provider.ID]time.Time),
	}
	c.active = ActiveState{Current: d.DefaultProvider, UpdatedAt: c.now()}
	c.publishActive()
	return c, nil
}

// Restore loads the persisted active provider. A missing, unreadable or
// unknown record falls back to the default provider, which is written back.
func (c *Controller) Restore(ctx context.Context) ActiveState {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.ReadActive(ctx)
	switch {
	case err == nil && c.catalog.Has(rec.Provider):
		c.active = ActiveState{Current: rec.Provider, UpdatedAt: rec.UpdatedAt}
		c.logger.Info("restored active provider", zap.String("provider", string(rec.Provider)))
		c.publishActive()
		return c.active
	case err == nil:
		c.logger.Warn("persisted active provider is unknown, using default",
			zap.String("persisted", string(rec.Provider)),
			zap.String("default", string(c.defaultID)))
	case errors.Is(err, store.ErrNotFound):
		c.logger.Info("no persisted active provider, using default", zap.String("default", string(c.defaultID)))
	default:
		c.logger.Error("failed to read active provider, using default", zap.Error(err))
	}

	c.active = ActiveState{Current: c.defaultID, UpdatedAt: c.now()}
	c.persistActive(ctx)
	c.publishActive()
	return c.active
}

// ActiveProvider returns the current active state.
func (c *Controller) ActiveProvider() ActiveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// CheckAndFailover runs one decision tick. It reports whether a failover
// happened; ErrNoEligibleTarget is returned when a trigger fired but no
// target could be selected.
func (c *Controller) CheckAndFailover(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	in := c.inputs(now)
	active := c.active.Current

	reason, triggered := c.evaluateTriggers(active, in)
	if !triggered {
		c.publishScores(in)
		return false, nil
	}

	target, ok := c.scorer.SelectBest(in, map[provider.ID]bool{active: true})
	if !ok || target == active {
		c.logger.Error("failover triggered but no eligible target",
			zap.String("active", string(active)),
			zap.String("reason", reason))
		if c.metrics != nil {
			c.metrics.DecisionFailures.Inc()
		}
		c.notify(ctx, notify.EventDecisionFailed, map[string]interface{}{
			"active": active,
			"reason": reason,
		})
		c.publishScores(in)
		return false, fmt.Errorf("%w: %s", ErrNoEligibleTarget, reason)
	}

	c.switchTo(ctx, target, reason, false, in, now)
	return true, nil
}

// ManualFailover switches to target unconditionally. It is a no-op
// returning false when target is already active.
func (c *Controller) ManualFailover(ctx context.Context, target provider.ID, reason string) (bool, error) {
	if !c.catalog.Has(target) {
		return false, &config.ConfigError{Field: "target", Msg: fmt.Sprintf("unknown provider %q", target)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if target == c.active.Current {
		return false, nil
	}
	if reason == "" {
		reason = "Manual failover"
	}

	now := c.now()
	c.switchTo(ctx, target, reason, true, c.inputs(now), now)
	return true, nil
}

// switchTo commits a failover. Caller holds c.mu. Persistence failures are
// logged and do not undo the in-memory switch.
func (c *Controller) switchTo(ctx context.Context, target provider.ID, reason string, manual bool, in scoring.Inputs, now time.Time) store.FailoverEvent {
	scores := make(map[provider.ID]float64, c.catalog.Len())
	for id, s := range c.scorer.ScoreAll(in) {
		scores[id] = s.Total
	}

	from := c.active.Current
	c.active = ActiveState{Current: target, UpdatedAt: now}
	c.lastFailover[from] = now

	ev := store.FailoverEvent{
		ID:          uuid.NewString(),
		Timestamp:   now,
		From:        from,
		To:          target,
		Reason:      reason,
		Manual:      manual,
		TriggeredBy: TriggeredBySystem,
		Scores:      scores,
	}
	if manual {
		ev.TriggeredBy = TriggeredByUser
		if actor, ok := ActorFromContext(ctx); ok {
			ev.Actor = actor
		}
	}

	if err := c.store.Append(ctx, ev); err != nil {
		c.logger.Error("failed to append failover event", zap.String("event_id", ev.ID), zap.Error(err))
		if c.metrics != nil {
			c.metrics.PersistenceErrors.WithLabelValues("append").Inc()
		}
	}
	c.persistActive(ctx)

	if c.metrics != nil {
		c.metrics.RecordFailover(string(from), string(target), manual)
	}
	c.publishActive()
	c.publishScores(in)
	c.notify(ctx, notify.EventFailoverCompleted, map[string]interface{}{
		"event_id":     ev.ID,
		"from":         from,
		"to":           target,
		"reason":       reason,
		"manual":       manual,
		"triggered_by": ev.TriggeredBy,
		"actor":        ev.Actor,
	})

	c.logger.Info("failover completed",
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("reason", reason),
		zap.Bool("manual", manual),
		zap.String("event_id", ev.ID))
	return ev
}

func (c *Controller) notify(ctx context.Context, eventType string, data map[string]interface{}) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, notify.NewEvent(eventType, data))
}

func (c *Controller) persistActive(ctx context.Context) {
	rec := store.ActiveRecord{Provider: c.active.Current, UpdatedAt: c.active.UpdatedAt}
	if err := c.store.WriteActive(ctx, rec); err != nil {
		c.logger.Error("failed to persist active provider", zap.Error(err))
		if c.metrics != nil {
			c.metrics.PersistenceErrors.WithLabelValues("write_active").Inc()
		}
	}
}

// inputs captures scoring inputs. Caller holds c.mu.
func (c *Controller) inputs(now time.Time) scoring.Inputs {
	lf := make(map[provider.ID]time.Time, len(c.lastFailover))
	for id, ts := range c.lastFailover {
		lf[id] = ts
	}
	return scoring.Inputs{
		Current:      c.health.CurrentSnapshot(),
		History:      c.health.Histories(),
		Performance:  c.performance.Current(),
		LastFailover: lf,
		Now:          now,
	}
}

func (c *Controller) publishActive() {
	if c.metrics == nil {
		return
	}
	ids := c.catalog.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	c.metrics.SetActive(string(c.active.Current), names)
}

func (c *Controller) publishScores(in scoring.Inputs) {
	if c.metrics == nil {
		return
	}
	for id, s := range c.scorer.ScoreAll(in) {
		c.metrics.ProviderScore.WithLabelValues(string(id)).Set(s.Total)
	}
}

// CalculateProviderScore scores one provider against current state.
func (c *Controller) CalculateProviderScore(id provider.ID) (scoring.Score, error) {
	if !c.catalog.Has(id) {
		return scoring.Score{}, &config.ConfigError{Field: "provider", Msg: fmt.Sprintf("unknown provider %q", id)}
	}

	c.mu.Lock()
	in := c.inputs(c.now())
	c.mu.Unlock()

	return c.scorer.Score(id, in), nil
}

// Scores scores every provider against current state.
func (c *Controller) Scores() map[provider.ID]scoring.Score {
	c.mu.Lock()
	in := c.inputs(c.now())
	c.mu.Unlock()

	return c.scorer.ScoreAll(in)
}

// RecentFailoverEvents returns up to limit events, newest first.
func (c *Controller) RecentFailoverEvents(ctx context.Context, limit int) ([]store.FailoverEvent, error) {
	return c.store.Recent(ctx, limit)
}

// Run is the body of the periodic failover task.
func (c *Controller) Run(ctx context.Context) error {
	_, err := c.CheckAndFailover(ctx)
	return err
}

// Threshold is the consecutive failure count that triggers a failover.
func (c *Controller) Threshold() int {
	return c.cfg.ConsecutiveFailures
}
