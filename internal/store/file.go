package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// File names inside the data directory.
const (
	EventsFile      = "failover_events.jsonl"
	ActiveFile      = "active_provider.json"
	HealthFile      = "health_status.json"
	PerformanceFile = "performance_data.json"
)

// FileStore keeps the event log as JSON lines and the other records as
// whole JSON documents replaced atomically.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Backend: "file", Op: "mkdir", Err: err}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, ev FailoverEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return &PersistenceError{Backend: "file", Op: "append", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &PersistenceError{Backend: "file", Op: "append", Err: err}
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return &PersistenceError{Backend: "file", Op: "append", Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Backend: "file", Op: "append", Err: err}
	}
	return nil
}

// Recent implements Store. Lines that fail to decode are skipped.
func (s *FileStore) Recent(ctx context.Context, limit int) ([]FailoverEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(EventsFile))
	if os.IsNotExist(err) {
		return []FailoverEvent{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Backend: "file", Op: "recent", Err: err}
	}
	defer func() { _ = f.Close() }()

	var all []FailoverEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev FailoverEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		all = append(all, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, &PersistenceError{Backend: "file", Op: "recent", Err: err}
	}

	return newestFirst(all, limit), nil
}

// ReadActive implements Store.
func (s *FileStore) ReadActive(ctx context.Context) (ActiveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec ActiveRecord
	data, err := os.ReadFile(s.path(ActiveFile))
	if os.IsNotExist(err) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, &PersistenceError{Backend: "file", Op: "read active", Err: err}
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, &PersistenceError{Backend: "file", Op: "read active", Err: err}
	}
	return rec, nil
}

// WriteActive implements Store.
func (s *FileStore) WriteActive(ctx context.Context, rec ActiveRecord) error {
	return s.writeJSON(ActiveFile, "write active", rec)
}

// RecordHealth replaces the health status document.
func (s *FileStore) RecordHealth(ctx context.Context, samples map[provider.ID]health.Sample) error {
	return s.writeJSON(HealthFile, "record health", samples)
}

// RecordPerformance replaces the performance document.
func (s *FileStore) RecordPerformance(ctx context.Context, snaps map[provider.ID]performance.Snapshot) error {
	return s.writeJSON(PerformanceFile, "record performance", snaps)
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) writeJSON(name, op string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Backend: "file", Op: op, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(name + ".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &PersistenceError{Backend: "file", Op: op, Err: err}
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return &PersistenceError{Backend: "file", Op: op, Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}

// newestFirst orders events by timestamp, newest first. Events sharing a
// timestamp keep their reverse append order.
func newestFirst(events []FailoverEvent, limit int) []FailoverEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	n := len(events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]FailoverEvent, 0, n)
	for i := len(events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, events[i])
	}
	return out
}
