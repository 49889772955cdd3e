package performance

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Mode selects the value ranges used by the synthetic source.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeDegraded Mode = "degraded"
	ModeFailure  Mode = "failure"
)

type span struct{ lo, hi float64 }

type modeRanges struct {
	cpu        span
	iops       span
	throughput span
	success    span
	latencyMs  span
}

var ranges = map[Mode]modeRanges{
	ModeNormal: {
		cpu:        span{10, 40},
		iops:       span{500, 2000},
		throughput: span{200, 1000},
		success:    span{99.5, 100},
		latencyMs:  span{20, 100},
	},
	ModeDegraded: {
		cpu:        span{60, 85},
		iops:       span{200, 500},
		throughput: span{50, 200},
		success:    span{95, 99.5},
		latencyMs:  span{200, 500},
	},
	ModeFailure: {
		cpu:        span{85, 100},
		iops:       span{10, 200},
		throughput: span{1, 50},
		success:    span{0, 95},
		latencyMs:  span{500, 2000},
	},
}

// referenceLatencyMs is the base latency response times are scaled against.
const referenceLatencyMs = 25.0

// HealthView is the part of the health monitor the synthetic source reads.
type HealthView interface {
	CurrentSnapshot() map[provider.ID]health.Sample
}

// SyntheticSource generates plausible metrics from each provider's health:
// unhealthy providers draw failure values, healthy ones occasionally draw
// degraded values, and the active provider carries extra CPU load.
type SyntheticSource struct {
	catalog        *provider.Catalog
	health         HealthView
	degradedChance float64

	mu     sync.Mutex
	rng    *rand.Rand
	mode   Mode
	active func() provider.ID
	now    func() time.Time
}

// NewSyntheticSource creates a synthetic source. A zero seed picks one
// from the clock.
func NewSyntheticSource(catalog *provider.Catalog, hv HealthView, cfg config.SyntheticConfig) *SyntheticSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SyntheticSource{
		catalog:        catalog,
		health:         hv,
		degradedChance: cfg.DegradedChance,
		rng:            rand.New(rand.NewSource(seed)),
		mode:           ModeNormal,
		now:            time.Now,
	}
}

// SetActiveFunc tells the source how to find the active provider.
func (s *SyntheticSource) SetActiveFunc(fn func() provider.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = fn
}

// SetMode sets the baseline mode for healthy providers.
func (s *SyntheticSource) SetMode(m Mode) bool {
	if _, ok := ranges[m]; !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	return true
}

// Fetch implements Source.
func (s *SyntheticSource) Fetch(ctx context.Context) (map[provider.ID]Snapshot, error) {
	var current map[provider.ID]health.Sample
	if s.health != nil {
		current = s.health.CurrentSnapshot()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var active provider.ID
	if s.active != nil {
		active = s.active()
	}

	now := s.now()
	out := make(map[provider.ID]Snapshot, s.catalog.Len())
	for _, p := range s.catalog.All() {
		mode := s.mode
		if sample, ok := current[p.ID]; ok && !sample.Healthy {
			mode = ModeFailure
		} else if s.rng.Float64() < s.degradedChance {
			mode = ModeDegraded
		}
		out[p.ID] = s.generate(p, mode, p.ID == active, now)
	}
	return out, nil
}

func (s *SyntheticSource) uniform(r span) float64 {
	return r.lo + s.rng.Float64()*(r.hi-r.lo)
}

func (s *SyntheticSource) generate(p provider.Provider, mode Mode, active bool, now time.Time) Snapshot {
	r := ranges[mode]

	cpu := s.uniform(r.cpu)
	if active {
		cpu += s.uniform(span{10, 20})
	}
	cpu = clamp(cpu, 0, 100)
	mem := clamp(cpu*s.uniform(span{0.8, 1.2}), 10, 100)

	base := p.BaseLatencyMs
	if base <= 0 {
		base = referenceLatencyMs
	}
	rt := s.uniform(r.latencyMs) / 1000 * (base / referenceLatencyMs)

	return Snapshot{
		Provider:            p.ID,
		CPUUtilization:      round2(cpu),
		MemoryUtilization:   round2(mem),
		DiskIOPS:            float64(int(s.uniform(r.iops))),
		NetworkThroughput:   round2(s.uniform(r.throughput)),
		RequestSuccessRate:  round2(s.uniform(r.success)),
		AverageResponseTime: float64(int(rt*1000+0.5)) / 1000,
		Timestamp:           now,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
