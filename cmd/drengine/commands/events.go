package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FairForge/multicloud-dr/internal/store"
)

var (
	eventsLimit int
	eventsJSON  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent failover events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		st, err := store.Open(cmd.Context(), cfg.Persistence, log)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		events, err := st.Recent(cmd.Context(), eventsLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if eventsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tFROM\tTO\tKIND\tACTOR\tREASON")
		for _, ev := range events {
			kind := "auto"
			if ev.Manual {
				kind = "manual"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				ev.Timestamp.Format(time.RFC3339), ev.From, ev.To, kind, ev.Actor, ev.Reason)
		}
		return tw.Flush()
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Maximum events to show (0 for all)")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Print JSON")
}
