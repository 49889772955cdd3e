package performance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

type staticHealth map[provider.ID]health.Sample

func (s staticHealth) CurrentSnapshot() map[provider.ID]health.Sample {
	return s
}

func TestSyntheticSource_HealthyProvidersInNormalRange(t *testing.T) {
	hv := staticHealth{
		"aws":   {Provider: "aws", Healthy: true},
		"azure": {Provider: "azure", Healthy: true},
		"gcp":   {Provider: "gcp", Healthy: true},
	}
	src := NewSyntheticSource(testCatalog(t), hv, config.SyntheticConfig{Seed: 42})

	for i := 0; i < 50; i++ {
		snaps, err := src.Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, snaps, 3)

		for id, s := range snaps {
			assert.GreaterOrEqual(t, s.RequestSuccessRate, 99.5, id)
			assert.LessOrEqual(t, s.CPUUtilization, 40.0, id)
			assert.GreaterOrEqual(t, s.MemoryUtilization, 10.0, id)
			assert.LessOrEqual(t, s.MemoryUtilization, 100.0, id)
		}
	}
}

func TestSyntheticSource_UnhealthyProviderFails(t *testing.T) {
	hv := staticHealth{
		"aws": {Provider: "aws", Healthy: false},
	}
	src := NewSyntheticSource(testCatalog(t), hv, config.SyntheticConfig{Seed: 7})

	snaps, err := src.Fetch(context.Background())
	require.NoError(t, err)

	aws := snaps["aws"]
	assert.Less(t, aws.RequestSuccessRate, 95.01)
	assert.GreaterOrEqual(t, aws.CPUUtilization, 85.0)
	assert.GreaterOrEqual(t, aws.AverageResponseTime, 0.5)
}

func TestSyntheticSource_ActiveCarriesExtraLoad(t *testing.T) {
	src := NewSyntheticSource(testCatalog(t), nil, config.SyntheticConfig{Seed: 1})
	src.SetActiveFunc(func() provider.ID { return "gcp" })

	for i := 0; i < 20; i++ {
		snaps, err := src.Fetch(context.Background())
		require.NoError(t, err)
		// normal range 10-40 plus 10-20 on the active provider
		assert.GreaterOrEqual(t, snaps["gcp"].CPUUtilization, 20.0)
	}
}

func TestSyntheticSource_ResponseTimeScaledByBaseLatency(t *testing.T) {
	cat, err := provider.NewCatalog([]provider.Provider{
		{ID: "slow", Priority: 1, BaseLatencyMs: 250},
	})
	require.NoError(t, err)

	src := NewSyntheticSource(cat, nil, config.SyntheticConfig{Seed: 3})
	src.now = func() time.Time { return time.Unix(100, 0) }

	snaps, err := src.Fetch(context.Background())
	require.NoError(t, err)
	// 20-100ms scaled by 10x
	assert.GreaterOrEqual(t, snaps["slow"].AverageResponseTime, 0.2)
	assert.Equal(t, time.Unix(100, 0), snaps["slow"].Timestamp)
}

func TestSyntheticSource_SetMode(t *testing.T) {
	src := NewSyntheticSource(testCatalog(t), nil, config.SyntheticConfig{Seed: 5})
	assert.False(t, src.SetMode("chaos"))
	require.True(t, src.SetMode(ModeDegraded))

	snaps, err := src.Fetch(context.Background())
	require.NoError(t, err)
	for _, s := range snaps {
		assert.GreaterOrEqual(t, s.RequestSuccessRate, 95.0)
		assert.LessOrEqual(t, s.RequestSuccessRate, 99.5)
	}
}
