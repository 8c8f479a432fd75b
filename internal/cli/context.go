package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the combined context the planning crew sees",
	Long: `Render résumés, backlog items and interview answers as one text block.
With --query each collection is limited to its top-k ranked documents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.orch.Context(cmd.Context(), query)
		if err != nil {
			return err
		}
		if text == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Context store is empty.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	contextCmd.Flags().StringP("query", "q", "", "rank documents against this query")
}
