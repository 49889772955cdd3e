package ha

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/metrics"
)

// Task names used by the engine.
const (
	TaskHealthProbe        = "health-probe"
	TaskPerformanceRefresh = "performance-refresh"
	TaskFailoverTick       = "failover-tick"
	TaskArchive            = "event-archive"
	TaskSnapshotWatch      = "snapshot-watch"
)

// Task is a named unit of background work. With a positive Interval, Run
// is called on every tick; with a zero Interval, Run is called once and is
// expected to block until ctx is done.
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs tasks as independent goroutines. A failing or panicking
// iteration is logged and the loop carries on.
type Scheduler struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler
func NewScheduler(logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		logger:  logger.Named("scheduler"),
		metrics: m,
	}
}

// Add registers a task. Tasks added after Start run on the next Start.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Tasks returns the registered task names.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Start launches every task.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
		s.logger.Info("task started", zap.String("task", t.Name), zap.Duration("interval", t.Interval))
	}
	return nil
}

// Stop cancels all tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("all tasks stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	if t.Interval <= 0 {
		s.runOnce(ctx, t)
		return
	}

	if t.RunOnStart {
		s.runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", zap.String("task", t.Name), zap.Any("panic", r))
			s.countError(t.Name)
		}
	}()

	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("task iteration failed", zap.String("task", t.Name), zap.Error(err))
		s.countError(t.Name)
	}
}

func (s *Scheduler) countError(name string) {
	if s.metrics != nil {
		s.metrics.TaskErrors.WithLabelValues(name).Inc()
	}
}
