package performance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/provider"
)

// snapshotSchema describes the document an external collector writes.
const snapshotSchema = `{
  "type": "object",
  "required": ["providers"],
  "properties": {
    "generated_at": {"type": "string"},
    "providers": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["cpu_utilization", "memory_utilization", "request_success_rate", "average_response_time"],
        "properties": {
          "cpu_utilization": {"type": "number", "minimum": 0, "maximum": 100},
          "memory_utilization": {"type": "number", "minimum": 0, "maximum": 100},
          "disk_iops": {"type": "number", "minimum": 0},
          "network_throughput": {"type": "number", "minimum": 0},
          "request_success_rate": {"type": "number", "minimum": 0, "maximum": 100},
          "average_response_time": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

type snapshotDocument struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Providers   map[provider.ID]Snapshot `json:"providers"`
}

// FileSource reads snapshots from a JSON document maintained by an external
// collector. With Watch running, the document is re-read whenever it
// changes and Fetch serves the cached copy.
type FileSource struct {
	path   string
	schema *gojsonschema.Schema
	logger *zap.Logger

	mu      sync.RWMutex
	cached  map[provider.ID]Snapshot
	loadErr error
}

// NewFileSource creates a file source for path.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return &FileSource{
		path:   path,
		schema: schema,
		logger: logger.Named("performance-file"),
	}, nil
}

// Fetch implements Source.
func (f *FileSource) Fetch(ctx context.Context) (map[provider.ID]Snapshot, error) {
	f.mu.RLock()
	cached, loadErr := f.cached, f.loadErr
	f.mu.RUnlock()

	if cached != nil || loadErr != nil {
		if loadErr != nil {
			return nil, loadErr
		}
		return copySnapshots(cached), nil
	}
	return f.load()
}

func (f *FileSource) load() (map[provider.ID]Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	result, err := f.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid snapshot file: %s", strings.Join(msgs, "; "))
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	ts := doc.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	out := make(map[provider.ID]Snapshot, len(doc.Providers))
	for id, s := range doc.Providers {
		s.Provider = id
		if s.Timestamp.IsZero() {
			s.Timestamp = ts
		}
		out[id] = s
	}
	return out, nil
}

func (f *FileSource) reload() {
	snaps, err := f.load()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("snapshot reload failed", zap.String("path", f.path), zap.Error(err))
		// keep serving the last good document if there is one
		if f.cached == nil {
			f.loadErr = err
		}
		return
	}
	f.cached = snaps
	f.loadErr = nil
	f.logger.Debug("snapshot file reloaded", zap.Int("providers", len(snaps)))
}

// Watch re-reads the file on every change until ctx is cancelled. The
// parent directory is watched so atomic rename-into-place is seen.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	f.reload()
	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				f.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func copySnapshots(in map[provider.ID]Snapshot) map[provider.ID]Snapshot {
	out := make(map[provider.ID]Snapshot, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
