package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FairForge/multicloud-dr/internal/scoring"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print the provider table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		cat, err := cfg.Catalog()
		if err != nil {
			return err
		}
		if _, err := scoring.NewEngine(cat, cfg.Weights, cfg.Failover.RecoveryTime); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "configuration ok: %d providers, default %s, persistence %s, performance %s\n",
			cat.Len(), cfg.DefaultProvider, cfg.Persistence.Backend, cfg.Performance.Source)
		for _, p := range cat.All() {
			w := cfg.Weights[p.ID]
			fmt.Fprintf(out, "  %d. %-8s %-12s cost %.2f/h  weights r=%.2f p=%.2f c=%.2f\n",
				p.Priority, p.ID, p.Region, p.CostPerHour, w.Reliability, w.Performance, w.Cost)
		}
		return nil
	},
}
