package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// DualStore writes to a primary and a secondary backend. Reads and the
// returned error come from the primary; secondary failures are only
// logged.
type DualStore struct {
	primary   Backend
	secondary Backend
	logger    *zap.Logger
}

// NewDualStore creates a dual-write store.
func NewDualStore(primary, secondary Backend, logger *zap.Logger) *DualStore {
	return &DualStore{
		primary:   primary,
		secondary: secondary,
		logger:    logger.Named("store"),
	}
}

func (d *DualStore) mirror(op string, err error) {
	if err != nil {
		d.logger.Warn("secondary store write failed", zap.String("op", op), zap.Error(err))
	}
}

// Append implements Store.
func (d *DualStore) Append(ctx context.Context, ev FailoverEvent) error {
	err := d.primary.Append(ctx, ev)
	d.mirror("append", d.secondary.Append(ctx, ev))
	return err
}

// Recent implements Store. Falls back to the secondary when the primary
// cannot be read.
func (d *DualStore) Recent(ctx context.Context, limit int) ([]FailoverEvent, error) {
	events, err := d.primary.Recent(ctx, limit)
	if err == nil {
		return events, nil
	}
	d.logger.Warn("primary store read failed, using secondary", zap.Error(err))
	if events, serr := d.secondary.Recent(ctx, limit); serr == nil {
		return events, nil
	}
	return nil, err
}

// ReadActive implements Store.
func (d *DualStore) ReadActive(ctx context.Context) (ActiveRecord, error) {
	rec, err := d.primary.ReadActive(ctx)
	if err == nil || errors.Is(err, ErrNotFound) {
		return rec, err
	}
	d.logger.Warn("primary active record unreadable, using secondary", zap.Error(err))
	if rec, serr := d.secondary.ReadActive(ctx); serr == nil {
		return rec, nil
	}
	return rec, err
}

// WriteActive implements Store.
func (d *DualStore) WriteActive(ctx context.Context, rec ActiveRecord) error {
	err := d.primary.WriteActive(ctx, rec)
	d.mirror("write active", d.secondary.WriteActive(ctx, rec))
	return err
}

// RecordHealth implements health.Recorder.
func (d *DualStore) RecordHealth(ctx context.Context, samples map[provider.ID]health.Sample) error {
	err := d.primary.RecordHealth(ctx, samples)
	d.mirror("record health", d.secondary.RecordHealth(ctx, samples))
	return err
}

// RecordPerformance implements performance.Recorder.
func (d *DualStore) RecordPerformance(ctx context.Context, snaps map[provider.ID]performance.Snapshot) error {
	err := d.primary.RecordPerformance(ctx, snaps)
	d.mirror("record performance", d.secondary.RecordPerformance(ctx, snaps))
	return err
}

// Close closes both backends.
func (d *DualStore) Close() error {
	return errors.Join(d.primary.Close(), d.secondary.Close())
}
