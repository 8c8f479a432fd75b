package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lucasnoah/sprintfactory/internal/ingest"
	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
	"github.com/spf13/cobra"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run the discovery interview for a session",
}

var interviewStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Ask the first question (or repeat the current one)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.orch.StartInterview(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return writeJSON(cmd, res)
		}
		printTurn(cmd.OutOrStdout(), res)
		return nil
	},
}

var interviewAnswerCmd = &cobra.Command{
	Use:   "answer <text>",
	Short: "Answer the current question",
	Long: `Record an answer, store it as project context and print the next question.
Documents passed with --attach are appended to the answer as [Document: name] blocks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		attach, _ := cmd.Flags().GetStringSlice("attach")
		srcs, readErrs := ingest.ReadFiles(attach)

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.orch.Answer(cmd.Context(), sessionID, strings.Join(args, " "), srcs...)
		if err != nil {
			return err
		}
		res.AttachmentErrors = append(readErrs, res.AttachmentErrors...)
		if isJSON(cmd) {
			return writeJSON(cmd, res)
		}
		printTurn(cmd.OutOrStdout(), res)
		return nil
	},
}

var interviewChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive interview on stdin",
	Long: `Answer questions line by line. Commands:
  /plan    generate the plan once the interview is ready
  /plan!   generate the plan even if it is not
  /quit    leave (the session is kept)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		a.pipeline.SetProgress(cmd.ErrOrStderr())

		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		res, err := a.orch.StartInterview(ctx, sessionID)
		if err != nil {
			return err
		}
		printTurn(w, res)

		in := bufio.NewScanner(cmd.InOrStdin())
		in.Buffer(make([]byte, 64*1024), 1<<20)
		for {
			fmt.Fprint(w, "> ")
			if !in.Scan() {
				fmt.Fprintln(w)
				return in.Err()
			}
			line := strings.TrimSpace(in.Text())
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/plan", "/plan!":
				plan, err := a.orch.GeneratePlan(ctx, sessionID, line == "/plan!")
				if errors.Is(err, orchestrator.ErrNotReady) {
					fmt.Fprintf(w, "Not ready yet: %v. Keep answering or use /plan!.\n", err)
					continue
				}
				if err != nil {
					return err
				}
				renderPlan(w, plan)
				return nil
			}

			res, err := a.orch.Answer(ctx, sessionID, line)
			if err != nil {
				return err
			}
			printTurn(w, res)
		}
	},
}

var interviewShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the session conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.orch.Session(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		if isJSON(cmd) {
			return writeJSON(cmd, s)
		}
		w := cmd.OutOrStdout()
		fmt.Fprint(w, interview.RenderHistory(s.History))
		fmt.Fprintf(w, "\n%s — sufficiency %d, %d turn(s)\n", s.Interview.Phase(), s.Interview.SufficiencyScore, s.Interview.Turns)
		return nil
	},
}

func printTurn(w io.Writer, res *orchestrator.TurnResult) {
	for _, e := range res.AttachmentErrors {
		fmt.Fprintf(w, "  ✗ attachment %s\n", e)
	}
	fmt.Fprintf(w, "[%s %d%%] %s\n", res.Phase, res.State.SufficiencyScore, res.Turn.Question)
	if res.Turn.Fallback {
		fmt.Fprintln(w, "  (model unavailable, asked a fallback question)")
	}
	if res.State.ReadyToPlan {
		fmt.Fprintln(w, "Enough context gathered. Run 'sprintfactory plan generate' (or /plan in chat).")
	}
}

func init() {
	interviewAnswerCmd.Flags().StringSlice("attach", nil, "documents to attach to the answer (.pdf, .txt, .md)")
	for _, c := range []*cobra.Command{interviewStartCmd, interviewAnswerCmd, interviewShowCmd} {
		c.Flags().String("format", "text", "Output format: text or json")
	}

	interviewCmd.AddCommand(interviewStartCmd)
	interviewCmd.AddCommand(interviewAnswerCmd)
	interviewCmd.AddCommand(interviewChatCmd)
	interviewCmd.AddCommand(interviewShowCmd)
}
