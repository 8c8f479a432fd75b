package cli

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/sprintfactory/internal/oracle"
	"github.com/spf13/cobra"
)

var oracleCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Inspect and test the configured language model",
}

var oracleResolveCmd = &cobra.Command{
	Use:   "resolve [model]",
	Short: "Show how a model name routes to a provider",
	Long: `Normalise a free-text model name (e.g. "gpt-4o", "claude-3-5-sonnet-latest",
"llama3") to a provider-qualified id. Without an argument the configured model is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		settings, err := oracle.SettingsFromConfig(cfg.LLM)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			settings.Model = args[0]
		}

		res := oracle.Resolve(settings)
		if isJSON(cmd) {
			return writeJSON(cmd, res)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "model id:  %s\n", res.ModelID)
		provider := string(res.Provider)
		if provider == "" {
			provider = "(passthrough)"
		}
		fmt.Fprintf(w, "provider:  %s\n", provider)
		fmt.Fprintf(w, "model:     %s\n", res.Model)
		if oracle.IsLocal(settings.BaseURL) {
			fmt.Fprintf(w, "base url:  %s (local)\n", settings.BaseURL)
		}
		return nil
	},
}

var oracleTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a probe prompt to the configured model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.oracle.Resolution()
		reply, err := a.oracle.TestConnection(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", res.ModelID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s replied: %s\n", res.ModelID, strings.TrimSpace(reply))
		return nil
	},
}

func init() {
	oracleResolveCmd.Flags().String("format", "text", "Output format: text or json")
	oracleCmd.AddCommand(oracleResolveCmd)
	oracleCmd.AddCommand(oracleTestCmd)
}
