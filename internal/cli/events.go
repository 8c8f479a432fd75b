package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent planning events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id := sessionID
		if all {
			id = ""
		}
		events, err := a.orch.Events(cmd.Context(), id, limit)
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return writeJSON(cmd, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSESSION\tEVENT\tSTAGE\tDETAIL")
		for _, e := range events {
			detail := e.Detail
			if len(detail) > 60 {
				detail = detail[:57] + "..."
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.SessionID, e.Event, e.Stage, detail)
		}
		return tw.Flush()
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "maximum events to show (0 = all)")
	eventsCmd.Flags().Bool("all", false, "show events of every session")
	eventsCmd.Flags().String("format", "text", "Output format: text or json")
}
