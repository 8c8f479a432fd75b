package cli

import (
	"fmt"
	"path/filepath"

	"github.com/lucasnoah/sprintfactory/internal/config"
	"github.com/lucasnoah/sprintfactory/internal/prompt"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage prompt templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in prompt templates",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range prompt.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var templatesInstallCmd = &cobra.Command{
	Use:   "install [dir]",
	Short: "Copy the built-in templates to a directory for editing",
	Long: `Write the built-in prompt templates into dir (default: planning.template_dir,
or ~/.sprintfactory/templates). Existing files are left untouched. Point
planning.template_dir at the directory to use the edited copies.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir = cfg.Planning.TemplateDir
		}
		if dir == "" {
			data, err := config.DataDir()
			if err != nil {
				return err
			}
			dir = filepath.Join(data, "templates")
		}

		written, err := prompt.InstallBuiltinTemplates(dir)
		if err != nil {
			return err
		}
		for _, f := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", f)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %d template(s) in %s\n", len(written), dir)
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesInstallCmd)
}
