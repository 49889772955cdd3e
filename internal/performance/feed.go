// Package performance holds the latest performance snapshot per provider
// and the sources that produce them.
package performance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// ErrNoData is returned by sources that have nothing to report yet.
var ErrNoData = errors.New("no performance data available")

// Snapshot is one provider's resource and request metrics.
type Snapshot struct {
	Provider            provider.ID `json:"provider"`
	CPUUtilization      float64     `json:"cpu_utilization"`
	MemoryUtilization   float64     `json:"memory_utilization"`
	DiskIOPS            float64     `json:"disk_iops"`
	NetworkThroughput   float64     `json:"network_throughput"`
	RequestSuccessRate  float64     `json:"request_success_rate"`
	AverageResponseTime float64     `json:"average_response_time"` // seconds
	Timestamp           time.Time   `json:"timestamp"`
}

// Source produces a fresh set of snapshots.
type Source interface {
	Fetch(ctx context.Context) (map[provider.ID]Snapshot, error)
}

// Recorder persists refreshed snapshots.
type Recorder interface {
	RecordPerformance(ctx context.Context, snaps map[provider.ID]Snapshot) error
}

// Feed keeps the current snapshot of every provider.
type Feed struct {
	catalog  *provider.Catalog
	source   Source
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu    sync.RWMutex
	snaps map[provider.ID]Snapshot
}

// NewFeed creates a feed over source. recorder and m may be nil.
func NewFeed(catalog *provider.Catalog, source Source, recorder Recorder, m *metrics.Metrics, logger *zap.Logger) *Feed {
	return &Feed{
		catalog:  catalog,
		source:   source,
		recorder: recorder,
		metrics:  m,
		logger:   logger.Named("performance"),
		snaps:    make(map[provider.ID]Snapshot, catalog.Len()),
	}
}

// Refresh pulls from the source and replaces the snapshot of every
// provider it reported. On error the previous snapshots stay in place.
func (f *Feed) Refresh(ctx context.Context) error {
	fresh, err := f.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch performance: %w", err)
	}

	accepted := make(map[provider.ID]Snapshot, len(fresh))
	f.mu.Lock()
	for id, s := range fresh {
		if !f.catalog.Has(id) {
			continue
		}
		s.Provider = id
		f.snaps[id] = s
		accepted[id] = s
	}
	f.mu.Unlock()

	if f.recorder != nil && len(accepted) > 0 {
		if err := f.recorder.RecordPerformance(ctx, accepted); err != nil {
			f.logger.Error("failed to persist performance snapshots", zap.Error(err))
			if f.metrics != nil {
				f.metrics.PersistenceErrors.WithLabelValues("performance").Inc()
			}
		}
	}

	f.logger.Debug("performance refreshed", zap.Int("providers", len(accepted)))
	return nil
}

// Run is the body of the periodic refresh task.
func (f *Feed) Run(ctx context.Context) error {
	return f.Refresh(ctx)
}

// Current returns a copy of all snapshots.
func (f *Feed) Current() map[provider.ID]Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[provider.ID]Snapshot, len(f.snaps))
	for id, s := range f.snaps {
		out[id] = s
	}
	return out
}

// Get returns the snapshot for id.
func (f *Feed) Get(id provider.ID) (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.snaps[id]
	return s, ok
}

// Set replaces the snapshot of s.Provider.
func (f *Feed) Set(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[s.Provider] = s
}

// Delete removes the snapshot for id.
func (f *Feed) Delete(id provider.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, id)
}
