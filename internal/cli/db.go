package cli

import (
	"fmt"

	"github.com/lucasnoah/sprintfactory/internal/db"
	"github.com/lucasnoah/sprintfactory/internal/db/pgstore"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, _, err := openBackend(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer backend.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s).\n", describeStore(cfg.Store.Backend, cfg.Store.Path))
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop every table, including the event log (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("db reset drops all documents and events; re-run with --yes")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, _, err := openBackend(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer backend.Close()

		switch b := backend.(type) {
		case *db.DB:
			err = b.ResetAll()
		case *pgstore.Store:
			err = b.ResetAll(cmd.Context())
		default:
			err = backend.Reset(cmd.Context())
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database reset (%s).\n", describeStore(cfg.Store.Backend, cfg.Store.Path))
		return nil
	},
}

func describeStore(backend, path string) string {
	switch backend {
	case "postgres", "memory":
		return backend
	}
	return "sqlite " + path
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "confirm the reset")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
