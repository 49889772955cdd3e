package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FairForge/multicloud-dr/internal/ha"
)

var (
	simulateRuns int
	simulateWarm bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario]",
	Short: "Inject a fault and report whether the engine failed over",
	Long: `Run a disaster scenario against live provider state.

Scenarios: provider_failure, performance_degradation, network_outage, random.
The failover decision is real: a successful run switches and records the
active provider like any automatic failover.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := ha.ParseScenario(args[0])
		if err != nil {
			return err
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		if simulateWarm {
			eng.warmUp(ctx)
		}

		for i := 0; i < simulateRuns; i++ {
			if _, err := eng.simulator.Execute(ctx, scenario); err != nil {
				fmt.Fprintf(os.Stderr, "run %d: %v\n", i+1, err)
			}
		}

		report := eng.simulator.GenerateReport()
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d simulations failed", report.Failed, report.Total)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateRuns, "runs", "n", 1, "Number of runs")
	simulateCmd.Flags().BoolVar(&simulateWarm, "warm", true, "Probe providers and refresh performance before simulating")
}
