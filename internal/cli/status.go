package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show context store counts and the session's interview progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.orch.Status(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return writeJSON(cmd, st)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Candidates:  %d (%d chunks)\n", st.Counts.Candidates, st.Counts.ResumeChunks)
		fmt.Fprintf(w, "Backlog:     %d\n", st.Counts.Backlog)
		fmt.Fprintf(w, "Context:     %d\n", st.Counts.Context)
		fmt.Fprintln(w)

		if st.SessionID == "" {
			fmt.Fprintf(w, "Session %q has not started.\n", sessionID)
		} else {
			fmt.Fprintf(w, "Session:     %s\n", st.SessionID)
			fmt.Fprintf(w, "Phase:       %s (sufficiency %d/%d, %d turns)\n", st.Phase, st.SufficiencyScore, st.Threshold, st.Turns)
			if st.CurrentQuestion != "" {
				fmt.Fprintf(w, "Question:    %s\n", st.CurrentQuestion)
			}
			fmt.Fprintf(w, "Plan:        %t\n", st.HasPlan)
		}

		if len(st.Candidates) == 0 {
			return nil
		}
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCHUNKS\tFILE")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", strings.Repeat("-", 11), strings.Repeat("-", 20), "------", "----")
		for _, c := range st.Candidates {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.Name, c.Chunks, c.Filename)
		}
		return tw.Flush()
	},
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
}
