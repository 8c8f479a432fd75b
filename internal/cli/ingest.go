package cli

import (
	"context"
	"fmt"

	"github.com/lucasnoah/sprintfactory/internal/ingest"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load résumés and backlog files into the context store",
}

var ingestResumesCmd = &cobra.Command{
	Use:   "resumes <file>...",
	Short: "Ingest résumés (.pdf, .txt, .md)",
	Long: `Extract text from each résumé, chunk it and store it under a new candidate id.
A failing file is reported and skipped; the rest of the batch is still stored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args, func(ctx context.Context, a *app, srcs []ingest.Source) ingest.BatchReport {
			return a.orch.IngestResumes(ctx, srcs)
		})
	},
}

var ingestBacklogCmd = &cobra.Command{
	Use:   "backlog <file>...",
	Short: "Ingest backlog items (.csv, .json, .yaml)",
	Long: `Parse backlog files into tickets (ticket_id, description, complexity,
required_skills) and store one document per ticket. Complexity defaults to Medium.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args, func(ctx context.Context, a *app, srcs []ingest.Source) ingest.BatchReport {
			return a.orch.IngestBacklog(ctx, srcs)
		})
	},
}

func runIngest(cmd *cobra.Command, paths []string, run func(context.Context, *app, []ingest.Source) ingest.BatchReport) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srcs, readErrs := ingest.ReadFiles(paths)
	rep := ingest.BatchReport{Errors: readErrs}
	rep.Merge(run(cmd.Context(), a, srcs))

	if isJSON(cmd) {
		if err := writeJSON(cmd, rep); err != nil {
			return err
		}
	} else {
		printReport(cmd, rep)
	}
	if len(rep.Ingested) == 0 && len(rep.Errors) > 0 {
		return fmt.Errorf("nothing ingested: %d file(s) failed", len(rep.Errors))
	}
	return nil
}

func printReport(cmd *cobra.Command, rep ingest.BatchReport) {
	w := cmd.OutOrStdout()
	for _, r := range rep.Ingested {
		fmt.Fprintf(w, "  ✓ %s → %s (%s)\n", r.File, r.Label, r.ID)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	fmt.Fprintf(w, "Ingested %d, failed %d.\n", len(rep.Ingested), len(rep.Errors))
}

func init() {
	for _, c := range []*cobra.Command{ingestResumesCmd, ingestBacklogCmd} {
		c.Flags().String("format", "text", "Output format: text or json")
		ingestCmd.AddCommand(c)
	}
}
