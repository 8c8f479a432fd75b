package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/analytics"
	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Summarise planning performance from the event log",
	Long: `Stage durations (avg, p50, p95), stage failure rates and plan outcomes across
every session. --since limits the window, e.g. --since 168h.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.orch.Events(cmd.Context(), "", 0)
		if err != nil {
			return err
		}
		var from time.Time
		if since > 0 {
			from = time.Now().UTC().Add(-since)
		}
		report := analytics.Build(analytics.Since(events, from))
		if !from.IsZero() {
			report.Since = from.Format(time.RFC3339)
		}
		if isJSON(cmd) {
			return writeJSON(cmd, report)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tRUNS\tAVG(s)\tP50(s)\tP95(s)")
		for _, d := range report.Durations {
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\n", d.Stage, d.Count, d.Avg, d.P50, d.P95)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "STAGE\tSTARTED\tCOMPLETED\tFAILED\tFAILED%")
		for _, f := range report.Failures {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f\n", f.Stage, f.Started, f.Completed, f.Failed, f.FailedPct)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		p := report.Plans
		fmt.Fprintf(cmd.OutOrStdout(), "\nPlans: %d run(s), %d generated, %d corrected, %d failed (%.1f%% success); %.1f correction(s) per planned session\n",
			p.Runs, p.Generated, p.Corrected, p.Failed, p.SuccessPct, p.AvgCorrections)
		return nil
	},
}

func init() {
	analyticsCmd.Flags().Duration("since", 0, "only include events newer than this (e.g. 168h)")
	analyticsCmd.Flags().String("format", "text", "Output format: text or json")
}
