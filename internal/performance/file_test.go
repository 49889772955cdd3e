package performance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validDoc = `{
  "generated_at": "2026-01-02T03:04:05Z",
  "providers": {
    "aws": {"cpu_utilization": 35, "memory_utilization": 40, "request_success_rate": 99.8, "average_response_time": 0.12},
    "gcp": {"cpu_utilization": 90, "memory_utilization": 88, "request_success_rate": 91, "average_response_time": 0.9}
  }
}`

func writeDoc(t *testing.T, path, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.json")
	writeDoc(t, path, validDoc)

	src, err := NewFileSource(path, zap.NewNop())
	require.NoError(t, err)

	snaps, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	gcp := snaps["gcp"]
	assert.Equal(t, 91.0, gcp.RequestSuccessRate)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), gcp.Timestamp.UTC())
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		src, err := NewFileSource(filepath.Join(dir, "absent.json"), zap.NewNop())
		require.NoError(t, err)

		_, err = src.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("schema violation", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		writeDoc(t, path, `{"providers": {"aws": {"cpu_utilization": 140}}}`)

		src, err := NewFileSource(path, zap.NewNop())
		require.NoError(t, err)

		_, err = src.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid snapshot file")
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		writeDoc(t, path, `not json`)

		src, err := NewFileSource(path, zap.NewNop())
		require.NoError(t, err)

		_, err = src.Fetch(context.Background())
		assert.Error(t, err)
	})
}

func TestFileSource_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.json")
	writeDoc(t, path, validDoc)

	src, err := NewFileSource(path, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()

	require.Eventually(t, func() bool {
		snaps, err := src.Fetch(context.Background())
		return err == nil && len(snaps) == 2
	}, 2*time.Second, 10*time.Millisecond)

	writeDoc(t, path, `{"providers": {"azure": {"cpu_utilization": 10, "memory_utilization": 20, "request_success_rate": 100, "average_response_time": 0.05}}}`)

	assert.Eventually(t, func() bool {
		snaps, err := src.Fetch(context.Background())
		_, ok := snaps["azure"]
		return err == nil && ok && len(snaps) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
