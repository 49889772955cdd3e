// Package store persists the failover event log and the active provider
// record.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// ErrNotFound is returned by ReadActive when nothing has been written yet.
var ErrNotFound = errors.New("not found")

// FailoverEvent records one change of active provider.
type FailoverEvent struct {
	ID          string                  `json:"id"`
	Timestamp   time.Time               `json:"timestamp"`
	From        provider.ID             `json:"from_provider"`
	To          provider.ID             `json:"to_provider"`
	Reason      string                  `json:"reason"`
	Manual      bool                    `json:"is_manual"`
	TriggeredBy string                  `json:"triggered_by"`
	Actor       string                  `json:"actor,omitempty"`
	Scores      map[provider.ID]float64 `json:"scores"`
}

// ActiveRecord is the persisted active provider.
type ActiveRecord struct {
	Provider  provider.ID `json:"provider"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store is the persistence contract of the failover controller.
type Store interface {
	Append(ctx context.Context, ev FailoverEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]FailoverEvent, error)
	ReadActive(ctx context.Context) (ActiveRecord, error)
	WriteActive(ctx context.Context, rec ActiveRecord) error
	Close() error
}

// Recorder is implemented by stores that also keep health and performance
// history.
type Recorder interface {
	health.Recorder
	performance.Recorder
}

// Backend is a Store that also records probe and performance history.
type Backend interface {
	Store
	Recorder
}

// PersistenceError wraps a failed storage operation.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
