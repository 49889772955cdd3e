// Package scoring ranks providers by health, reliability, performance,
// recent failovers and cost.
package scoring

import (
	"math"
	"time"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// Score term constants.
const (
	HealthyBase       = 50.0
	ReliabilityScale  = 20.0
	ResponseTimeScale = 10.0
	SuccessRateScale  = 10.0
	CooldownPenalty   = 15.0
	CostScale         = 10.0
)

// Inputs is everything a score depends on, captured at one instant.
type Inputs struct {
	Current      map[provider.ID]health.Sample
	History      map[provider.ID]health.History
	Performance  map[provider.ID]performance.Snapshot
	LastFailover map[provider.ID]time.Time
	Now          time.Time
}

// Breakdown itemizes a score.
type Breakdown struct {
	Health          float64 `json:"health"`
	Reliability     float64 `json:"reliability"`
	Performance     float64 `json:"performance"`
	CooldownPenalty float64 `json:"cooldown_penalty"`
	Cost            float64 `json:"cost"`
}

// Score is a provider's total with its breakdown.
type Score struct {
	Provider  provider.ID `json:"provider"`
	Total     float64     `json:"total"`
	Breakdown Breakdown   `json:"breakdown"`
}

// Engine computes scores. It holds no mutable state.
type Engine struct {
	catalog      *provider.Catalog
	weights      map[provider.ID]config.Weights
	recoveryTime time.Duration
	costMin      float64
	costMax      float64
}

// NewEngine validates the weight table and creates a scoring engine.
func NewEngine(catalog *provider.Catalog, weights map[provider.ID]config.Weights, recoveryTime time.Duration) (*Engine, error) {
	if err := config.ValidateWeights(catalog, weights); err != nil {
		return nil, err
	}

	w := make(map[provider.ID]config.Weights, len(weights))
	for id, v := range weights {
		w[id] = v
	}
	min, max := catalog.CostRange()

	return &Engine{
		catalog:      catalog,
		weights:      w,
		recoveryTime: recoveryTime,
		costMin:      min,
		costMax:      max,
	}, nil
}

// Score computes the score of one provider. A provider without a current
// sample, or whose current sample is unhealthy, scores 0.
func (e *Engine) Score(id provider.ID, in Inputs) Score {
	s := Score{Provider: id}

	cur, ok := in.Current[id]
	if !ok || !cur.Healthy {
		return s
	}
	w, ok := e.weights[id]
	if !ok {
		return s
	}

	b := &s.Breakdown
	b.Health = HealthyBase
	b.Reliability = ReliabilityScale * in.History[id].HealthyRatio() * w.Reliability

	if perf, ok := in.Performance[id]; ok {
		rt := math.Max(0, ResponseTimeScale-perf.AverageResponseTime*ResponseTimeScale)
		sr := perf.RequestSuccessRate / 100 * SuccessRateScale
		b.Performance = (rt + sr) * w.Performance
	}

	if ts, ok := in.LastFailover[id]; ok && in.Now.Sub(ts) < e.recoveryTime {
		b.CooldownPenalty = -CooldownPenalty
	}

	if p, ok := e.catalog.Get(id); ok {
		b.Cost = e.costScore(p.CostPerHour) * w.Cost
	}

	s.Total = b.Health + b.Reliability + b.Performance + b.CooldownPenalty + b.Cost
	return s
}

func (e *Engine) costScore(cost float64) float64 {
	if e.costMax == e.costMin {
		return CostScale / 2
	}
	return CostScale * (1 - (cost-e.costMin)/(e.costMax-e.costMin))
}

// ScoreAll scores every provider in the catalog.
func (e *Engine) ScoreAll(in Inputs) map[provider.ID]Score {
	out := make(map[provider.ID]Score, e.catalog.Len())
	for _, id := range e.catalog.IDs() {
		out[id] = e.Score(id, in)
	}
	return out
}

// SelectBest returns the highest scoring provider not in exclude. Ties go
// to the lower priority rank. It reports false when no candidate scores
// above zero.
func (e *Engine) SelectBest(in Inputs, exclude map[provider.ID]bool) (provider.ID, bool) {
	var best provider.ID
	bestScore := 0.0
	found := false

	// catalog order is priority order, so a strict comparison keeps the
	// earlier provider on ties
	for _, id := range e.catalog.IDs() {
		if exclude[id] {
			continue
		}
		total := e.Score(id, in).Total
		if total <= 0 {
			continue
		}
		if !found || total > bestScore {
			best, bestScore, found = id, total, true
		}
	}
	return best, found
}
