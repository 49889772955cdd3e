// Package ha decides which cloud provider is active and fails over when it
// stops being the right choice.
//
// # Overview
//
// The package combines three inputs into one decision per tick:
//   - health samples from the health monitor (last ten per provider)
//   - performance snapshots from the performance feed
//   - scores computed by the scoring engine
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       Scheduler                          │
//	│   health-probe (30s)  performance-refresh (60s)          │
//	│   failover-tick (10s) event-archive (optional)           │
//	├──────────────────────────────────────────────────────────┤
//	│                       Controller                         │
//	│   triggers, target selection, cooldowns, event log       │
//	├────────────────────────────┬─────────────────────────────┤
//	│         Simulator          │        store.Store          │
//	│   fault injection + tick   │   events + active record    │
//	└────────────────────────────┴─────────────────────────────┘
//
// # Triggers
//
// Each tick evaluates, in order, against the active provider:
//
//  1. Consecutive failures: the newest N health samples are all unhealthy.
//  2. Performance degradation: response time, success rate, or combined
//     CPU and memory pressure crosses its threshold.
//  3. Superior alternative: another provider scores more than
//     SuperiorRatio times the active score and above SuperiorMinScore.
//
// The first trigger that fires names the reason. The target is the best
// scoring provider other than the active one; ties go to the lower
// priority rank. When no provider scores above zero the tick returns
// ErrNoEligibleTarget and nothing changes.
//
// # Cooldown
//
// Failing away from a provider stamps it; for RecoveryTime afterwards its
// score carries a penalty so the controller does not flap straight back.
//
// # Quick Start
//
//	ctrl, err := ha.NewController(ha.Deps{
//		Catalog:         catalog,
//		Health:          monitor,
//		Performance:     feed,
//		Scorer:          engine,
//		Store:           st,
//		Config:          cfg.Failover,
//		DefaultProvider: cfg.DefaultProvider,
//		Logger:          logger,
//	})
//	if err != nil {
//		return err
//	}
//	ctrl.Restore(ctx)
//
//	sched := ha.NewScheduler(logger, m)
//	sched.Add(ha.Task{Name: ha.TaskFailoverTick, Interval: 10 * time.Second, Run: ctrl.Run})
//	_ = sched.Start(ctx)
//	defer sched.Stop()
//
// # Simulation
//
// Simulator injects one of provider_failure, performance_degradation or
// network_outage into live state, runs a tick, and restores what it
// touched even if the tick panics.
package ha
