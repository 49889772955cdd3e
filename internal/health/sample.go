// Package health probes providers and keeps a short, bounded history of
// the results.
package health

import (
	"time"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// HistorySize is the number of samples kept per provider.
const HistorySize = 10

// Sample is the outcome of one health probe.
type Sample struct {
	Provider     provider.ID    `json:"provider"`
	Timestamp    time.Time      `json:"timestamp"`
	Healthy      bool           `json:"healthy"`
	ResponseTime *time.Duration `json:"response_time,omitempty"`
	Error        string         `json:"error,omitempty"`
	StatusCode   *int           `json:"status_code,omitempty"`
}

// History is an oldest-first list of samples for one provider.
type History []Sample

// Append adds s and drops the oldest samples beyond HistorySize. The
// receiver is not modified.
func (h History) Append(s Sample) History {
	out := make(History, 0, HistorySize)
	start := 0
	if len(h)+1 > HistorySize {
		start = len(h) + 1 - HistorySize
	}
	out = append(out, h[start:]...)
	return append(out, s)
}

// Latest returns the newest sample.
func (h History) Latest() (Sample, bool) {
	if len(h) == 0 {
		return Sample{}, false
	}
	return h[len(h)-1], true
}

// ConsecutiveFailures counts unhealthy samples from the newest backwards,
// stopping at the first healthy one.
func (h History) ConsecutiveFailures() int {
	n := 0
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Healthy {
			break
		}
		n++
	}
	return n
}

// HealthyRatio is the fraction of healthy samples, 0 when empty.
func (h History) HealthyRatio() float64 {
	if len(h) == 0 {
		return 0
	}
	healthy := 0
	for _, s := range h {
		if s.Healthy {
			healthy++
		}
	}
	return float64(healthy) / float64(len(h))
}

// Unhealthy builds a failed sample, used by probes and fault injection.
func Unhealthy(id provider.ID, at time.Time, reason string) Sample {
	return Sample{Provider: id, Timestamp: at, Healthy: false, Error: reason}
}
