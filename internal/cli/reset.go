package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all résumés, backlog items and context, and restart the session (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("reset deletes every stored document and session %q; re-run with --yes", sessionID)
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.orch.Reset(cmd.Context(), sessionID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context store cleared; session %q removed.\n", sessionID)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "confirm the reset")
}
