package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

// Persistent flags.
var (
	configFile string
	sessionID  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sprintfactory",
	Short: "sprintfactory — interview-driven sprint planning",
	Long: `sprintfactory interviews a project lead until it knows enough to plan, then
runs a three-stage planning crew (staffing, scheduling, audit) over the
ingested résumés, backlog and interview answers and extracts a task table.

Context is stored in ~/.sprintfactory/ (SQLite by default, Postgres optional);
sessions are JSON files, kept in memory, or stored in Redis.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to sprintfactory.yaml (default: ./sprintfactory.yaml, ~/.sprintfactory/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "planning session id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log orchestration details to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(oracleCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(templatesCmd)
}
