package ha

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/FairForge/multicloud-dr/internal/health"
	"github.com/FairForge/multicloud-dr/internal/metrics"
	"github.com/FairForge/multicloud-dr/internal/performance"
	"github.com/FairForge/multicloud-dr/internal/provider"
)

// ErrUnknownScenario is returned for scenario names the simulator does not
// know.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario names a fault injected by the simulator.
type Scenario string

const (
	ScenarioProviderFailure        Scenario = "provider_failure"
	ScenarioPerformanceDegradation Scenario = "performance_degradation"
	ScenarioNetworkOutage          Scenario = "network_outage"
	ScenarioRandom                 Scenario = "random"
)

// Scenarios lists the concrete scenarios random picks from.
var Scenarios = []Scenario{
	ScenarioProviderFailure,
	ScenarioPerformanceDegradation,
	ScenarioNetworkOutage,
}

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	sc := Scenario(s)
	if sc == ScenarioRandom {
		return sc, nil
	}
	for _, known := range Scenarios {
		if sc == known {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
}

// Values written into the active provider's snapshot by the degradation
// scenario.
var degradedSnapshot = performance.Snapshot{
	AverageResponseTime: 0.8,
	RequestSuccessRate:  92,
	CPUUtilization:      90,
	MemoryUtilization:   85,
}

// HealthInjector is the health state the simulator can rewrite.
type HealthInjector interface {
	Inject(id provider.ID, samples ...health.Sample) health.History
	RevertInjected(id provider.ID, base health.History, marker string)
}

// SimulatedFailure marks the samples injected by the simulator.
const SimulatedFailure = "Simulated provider failure"

// PerformanceInjector is the performance state the simulator can rewrite.
type PerformanceInjector interface {
	Get(id provider.ID) (performance.Snapshot, bool)
	Set(s performance.Snapshot)
	Delete(id provider.ID)
}

// ScenarioResult captures the outcome of one simulation.
type ScenarioResult struct {
	Scenario          Scenario      `json:"scenario"`
	Target            provider.ID   `json:"target"`
	ExpectedFailover  bool          `json:"expected_failover"`
	FailoverTriggered bool          `json:"failover_triggered"`
	From              provider.ID   `json:"from"`
	To                provider.ID   `json:"to"`
	Passed            bool          `json:"passed"`
	Error             string        `json:"error,omitempty"`
	Duration          time.Duration `json:"duration"`
	ExecutedAt        time.Time     `json:"executed_at"`
}

// Report summarizes simulator runs.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Total       int              `json:"total"`
	Passed      int              `json:"passed"`
	Failed      int              `json:"failed"`
	Results     []ScenarioResult `json:"results"`
}

// Simulator injects faults into live health and performance state, runs one
// decision tick, and restores what it touched.
type Simulator struct {
	controller *Controller
	health     HealthInjector
	perf       PerformanceInjector
	metrics    *metrics.Metrics
	logger     *zap.Logger

	runMu   sync.Mutex
	rng     *rand.Rand
	mu      sync.Mutex
	results []ScenarioResult
}

// NewSimulator creates a simulator driving controller.
func NewSimulator(controller *Controller, h HealthInjector, p PerformanceInjector, m *metrics.Metrics, logger *zap.Logger) *Simulator {
	return &Simulator{
		controller: controller,
		health:     h,
		perf:       p,
		metrics:    m,
		logger:     logger.Named("simulator"),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		results:    make([]ScenarioResult, 0),
	}
}

// Run executes a scenario and reports whether a failover happened.
func (s *Simulator) Run(ctx context.Context, scenario Scenario) (bool, error) {
	res, err := s.Execute(ctx, scenario)
	return res.FailoverTriggered, err
}

// Execute runs one scenario. Runs are serialized.
func (s *Simulator) Execute(ctx context.Context, scenario Scenario) (ScenarioResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if scenario == ScenarioRandom {
		scenario = Scenarios[s.rng.Intn(len(Scenarios))]
	}

	result := ScenarioResult{
		Scenario:   scenario,
		ExecutedAt: time.Now(),
	}
	active := s.controller.ActiveProvider().Current
	result.From = active
	start := time.Now()

	var (
		triggered bool
		err       error
	)
	switch scenario {
	case ScenarioProviderFailure:
		result.Target = active
		result.ExpectedFailover = true
		triggered, err = s.injectFailures(ctx, active)
	case ScenarioPerformanceDegradation:
		result.Target = active
		result.ExpectedFailover = true
		triggered, err = s.injectDegradation(ctx, active)
	case ScenarioNetworkOutage:
		target, ok := s.pickBystander(active)
		if !ok {
			return result, fmt.Errorf("network outage needs a non-active provider")
		}
		result.Target = target
		triggered, err = s.injectFailures(ctx, target)
	default:
		return result, fmt.Errorf("%w: %q", ErrUnknownScenario, scenario)
	}

	result.Duration = time.Since(start)
	result.FailoverTriggered = triggered
	result.To = s.controller.ActiveProvider().Current
	result.Passed = triggered == result.ExpectedFailover
	if !result.Passed {
		result.Error = buildErrorMessage(result, err)
	} else if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordSimulation(string(scenario), result.Passed)
	}
	s.logger.Info("simulation finished",
		zap.String("scenario", string(scenario)),
		zap.String("target", string(result.Target)),
		zap.Bool("failover", triggered),
		zap.Bool("passed", result.Passed))

	return result, err
}

// injectFailures appends threshold+1 unhealthy samples to id, runs a tick
// and takes the injected samples back out. Real samples recorded during the
// tick are kept.
func (s *Simulator) injectFailures(ctx context.Context, id provider.ID) (bool, error) {
	now := time.Now()
	injected := make([]health.Sample, s.controller.Threshold()+1)
	for i := range injected {
		injected[i] = health.Unhealthy(id, now, SimulatedFailure)
	}

	base := s.health.Inject(id, injected...)
	defer s.health.RevertInjected(id, base, SimulatedFailure)

	return s.controller.CheckAndFailover(ctx)
}

// injectDegradation overwrites id's snapshot, runs a tick and restores the
// original snapshot, or its absence, on every exit path.
func (s *Simulator) injectDegradation(ctx context.Context, id provider.ID) (bool, error) {
	orig, had := s.perf.Get(id)
	defer func() {
		if had {
			s.perf.Set(orig)
		} else {
			s.perf.Delete(id)
		}
	}()

	degraded := degradedSnapshot
	degraded.Provider = id
	degraded.DiskIOPS = orig.DiskIOPS
	degraded.NetworkThroughput = orig.NetworkThroughput
	degraded.Timestamp = time.Now()
	s.perf.Set(degraded)

	return s.controller.CheckAndFailover(ctx)
}

func (s *Simulator) pickBystander(active provider.ID) (provider.ID, bool) {
	var others []provider.ID
	for _, id := range s.controller.catalog.IDs() {
		if id != active {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return "", false
	}
	return others[s.rng.Intn(len(others))], true
}

func buildErrorMessage(r ScenarioResult, err error) string {
	var parts []string
	if r.ExpectedFailover {
		parts = append(parts, "expected failover but none occurred")
	} else {
		parts = append(parts, "unexpected failover occurred")
	}
	if err != nil {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

// Results returns all recorded results, oldest first.
func (s *Simulator) Results() []ScenarioResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScenarioResult, len(s.results))
	copy(out, s.results)
	return out
}

// GenerateReport summarizes all runs so far.
func (s *Simulator) GenerateReport() Report {
	results := s.Results()
	r := Report{
		GeneratedAt: time.Now(),
		Total:       len(results),
		Results:     results,
	}
	for _, res := range results {
		if res.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	return r
}
