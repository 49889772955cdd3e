package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// brokenBackend fails every operation.
type brokenBackend struct{}

var errBroken = errors.New("backend unavailable")

func (brokenBackend) Append(context.Context, FailoverEvent) error { return errBroken }
func (brokenBackend) Recent(context.Context, int) ([]FailoverEvent, error) {
	return nil, errBroken
}
func (brokenBackend) ReadActive(context.Context) (ActiveRecord, error) {
	return ActiveRecord{}, errBroken
}
func (brokenBackend) WriteActive(context.Context, ActiveRecord) error { return errBroken }
func (brokenBackend) RecordHealth(context.Context, map[provider.ID]health.Sample) error {
	return errBroken
}
func (brokenBackend) RecordPerformance(context.Context, map[provider.ID]performance.Snapshot) error {
	return errBroken
}
func (brokenBackend) Close() error { return nil }

func TestDualStore_SecondaryFailureDoesNotFailPrimary(t *testing.T) {
	primary, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	d := NewDualStore(primary, brokenBackend{}, zap.New(core))
	ctx := context.Background()

	require.NoError(t, d.Append(ctx, event(1)))
	require.NoError(t, d.WriteActive(ctx, ActiveRecord{Provider: "azure", UpdatedAt: time.Now()}))

	events, err := d.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	assert.Equal(t, 2, logs.FilterMessage("secondary store write failed").Len())
}

func TestDualStore_PrimaryFailureIsReturned(t *testing.T) {
	secondary, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	d := NewDualStore(brokenBackend{}, secondary, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, d.Append(ctx, event(1)), errBroken)

	// the secondary still got the copy and serves reads
	events, err := d.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDualStore_ReadActiveFallback(t *testing.T) {
	secondary, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, secondary.WriteActive(context.Background(), ActiveRecord{Provider: "gcp"}))

	d := NewDualStore(brokenBackend{}, secondary, zap.NewNop())
	rec, err := d.ReadActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, provider.ID("gcp"), rec.Provider)
}
