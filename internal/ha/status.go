package ha

import (
	"time"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
)

// ProviderStatus is one provider's row in a status snapshot.
type ProviderStatus struct {
	Provider            provider.Provider     `json:"provider"`
	Active              bool                  `json:"active"`
	Healthy             bool                  `json:"healthy"`
	LastSample          *health.Sample        `json:"last_sample,omitempty"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	Performance         *performance.Snapshot `json:"performance,omitempty"`
	Score               scoring.Score         `json:"score"`
	CooldownRemaining   time.Duration         `json:"cooldown_remaining"`
}

// Status is a point-in-time view for dashboards.
type Status struct {
	Active      ActiveState      `json:"active"`
	Providers   []ProviderStatus `json:"providers"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Status builds a status snapshot in priority order.
func (c *Controller) Status() Status {
	c.mu.Lock()
	now := c.now()
	in := c.inputs(now)
	active := c.active
	c.mu.Unlock()

	st := Status{Active: active, GeneratedAt: now}
	for _, p := range c.catalog.All() {
		ps := ProviderStatus{
			Provider:            p,
			Active:              p.ID == active.Current,
			ConsecutiveFailures: in.History[p.ID].ConsecutiveFailures(),
			Score:               c.scorer.Score(p.ID, in),
		}
		if s, ok := in.Current[p.ID]; ok {
			s := s
			ps.LastSample = &s
			ps.Healthy = s.Healthy
		}
		if snap, ok := in.Performance[p.ID]; ok {
			snap := snap
			ps.Performance = &snap
		}
		if ts, ok := in.LastFailover[p.ID]; ok {
			if left := c.cfg.RecoveryTime - now.Sub(ts); left > 0 {
				ps.CooldownRemaining = left
			}
		}
		st.Providers = append(st.Providers, ps)
	}
	return st
}
