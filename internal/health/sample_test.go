package health

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleAt(healthy bool, i int) Sample {
	return Sample{
		Provider:  "aws",
		Timestamp: time.Unix(int64(i), 0),
		Healthy:   healthy,
	}
}

func TestHistory_AppendBounded(t *testing.T) {
	var h History
	for i := 0; i < 25; i++ {
		h = h.Append(sampleAt(true, i))
		assert.LessOrEqual(t, len(h), HistorySize)
	}

	assert.Len(t, h, HistorySize)
	// oldest first, only the last ten remain
	assert.Equal(t, time.Unix(15, 0), h[0].Timestamp)
	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, time.Unix(24, 0), latest.Timestamp)
}

func TestHistory_AppendDoesNotAlias(t *testing.T) {
	h := History{sampleAt(true, 0)}
	h2 := h.Append(sampleAt(false, 1))

	assert.Len(t, h, 1)
	assert.Len(t, h2, 2)
}

func TestHistory_ConsecutiveFailures(t *testing.T) {
	tests := []struct {
		pattern string
		want    int
	}{
		{"", 0},
		{"H", 0},
		{"U", 1},
		{"HUU", 2},
		{"UUHUUU", 3},
		{"UUUUH", 0},
		{"UUUUUUUUUU", 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.pattern), func(t *testing.T) {
			var h History
			for i, c := range tt.pattern {
				h = h.Append(sampleAt(c == 'H', i))
			}
			assert.Equal(t, tt.want, h.ConsecutiveFailures())
		})
	}
}

func TestHistory_HealthyRatio(t *testing.T) {
	var h History
	assert.Equal(t, 0.0, h.HealthyRatio())

	h = h.Append(sampleAt(true, 0))
	h = h.Append(sampleAt(false, 1))
	h = h.Append(sampleAt(true, 2))
	h = h.Append(sampleAt(true, 3))
	assert.InDelta(t, 0.75, h.HealthyRatio(), 1e-9)
}
