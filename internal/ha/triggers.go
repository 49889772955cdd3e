package ha

import (
	"fmt"

	"github.com/FairForge/multicloud-dr/internal/config"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
	"github.com/FairForge/multicloud-dr/internal/scoring"
)

// Reasons recorded for automatic failovers.
const (
	ReasonDegradation = "Significant performance degradation detected"
)

// ReasonConsecutiveFailures formats the consecutive failure reason.
func ReasonConsecutiveFailures(n int) string {
	return fmt.Sprintf("Provider unhealthy for %d consecutive checks", n)
}

// ReasonSuperior formats the better-alternative reason.
func ReasonSuperior(id provider.ID) string {
	return fmt.Sprintf("Better performing provider (%s) available", id)
}

// DetectPerformanceDegradation reports whether a snapshot crosses the
// degradation thresholds.
func DetectPerformanceDegradation(s performance.Snapshot, t config.Degradation) bool {
	return s.AverageResponseTime > t.MaxResponseTime ||
		s.RequestSuccessRate < t.MinSuccessRate ||
		(s.CPUUtilization > t.MaxCPU && s.MemoryUtilization > t.MaxMemory)
}

// evaluateTriggers checks the failover triggers in order and returns the
// reason of the first that fires. Caller holds c.mu.
func (c *Controller) evaluateTriggers(active provider.ID, in scoring.Inputs) (string, bool) {
	if n := in.History[active].ConsecutiveFailures(); n >= c.cfg.ConsecutiveFailures {
		return ReasonConsecutiveFailures(n), true
	}

	if snap, ok := in.Performance[active]; ok && DetectPerformanceDegradation(snap, c.cfg.Degradation) {
		return ReasonDegradation, true
	}

	activeScore := c.scorer.Score(active, in).Total
	for _, id := range c.catalog.IDs() {
		if id == active {
			continue
		}
		s := c.scorer.Score(id, in).Total
		if s > c.cfg.SuperiorRatio*activeScore && s > c.cfg.SuperiorMinScore {
			return ReasonSuperior(id), true
		}
	}

	return "", false
}
