package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lucasnoah/sprintfactory/internal/extract"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
	"github.com/lucasnoah/sprintfactory/internal/planning"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate, correct and show sprint plans",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the staffing → schedule → audit crew over the full context",
	Long: `Run the three planning stages in order and extract the task table from the
schedule. The interview must be READY unless --force is given. Nothing is saved
when a stage fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runPlan(cmd, func(a *app) (*planning.SprintPlan, error) {
			return a.orch.GeneratePlan(cmd.Context(), sessionID, force)
		})
	},
}

var planCorrectCmd = &cobra.Command{
	Use:   "correct <text>",
	Short: "Add a correction to the context and regenerate the plan",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correction := strings.Join(args, " ")
		return runPlan(cmd, func(a *app) (*planning.SprintPlan, error) {
			return a.orch.Correct(cmd.Context(), sessionID, correction)
		})
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the session's last plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd, func(a *app) (*planning.SprintPlan, error) {
			s, err := a.orch.Session(cmd.Context(), sessionID)
			if err != nil {
				return nil, err
			}
			if s.Plan == nil {
				return nil, orchestrator.ErrNoPlan
			}
			return s.Plan, nil
		})
	},
}

func runPlan(cmd *cobra.Command, get func(*app) (*planning.SprintPlan, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if !isJSON(cmd) {
		a.pipeline.SetProgress(cmd.ErrOrStderr())
	}

	plan, err := get(a)
	if errors.Is(err, orchestrator.ErrNotReady) {
		return fmt.Errorf("%w; keep answering with 'sprintfactory interview answer' or pass --force", err)
	}
	if err != nil {
		return err
	}

	if isJSON(cmd) {
		return writeJSON(cmd, plan)
	}
	w := cmd.OutOrStdout()
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		printStageTexts(w, plan)
		return nil
	}
	renderPlan(w, plan)
	printOverloaded(w, plan, float64(a.cfg.Planning.HoursPerWeek))
	return nil
}

func printStageTexts(w io.Writer, plan *planning.SprintPlan) {
	sections := []struct{ title, text string }{
		{"Staffing", plan.StaffingText},
		{"Schedule", plan.ScheduleText},
		{"Audit", plan.FullReport},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "## %s\n\n%s\n\n", s.title, strings.TrimSpace(s.text))
	}
}

func printOverloaded(w io.Writer, plan *planning.SprintPlan, capacity float64) {
	for _, l := range extract.Overloaded(plan.Workload(), capacity) {
		fmt.Fprintf(w, "  ! %s is planned for %.1fh, over the %.0fh capacity\n", l.Assignee, l.Hours, capacity)
	}
}

func init() {
	planGenerateCmd.Flags().Bool("force", false, "plan even if the interview is not ready")
	for _, c := range []*cobra.Command{planGenerateCmd, planCorrectCmd, planShowCmd} {
		c.Flags().String("format", "text", "Output format: text or json")
		c.Flags().Bool("raw", false, "print each stage's text instead of the table")
		planCmd.AddCommand(c)
	}
}
