package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/sprintfactory/internal/analytics"
	"github.com/lucasnoah/sprintfactory/internal/oracle"
	"github.com/lucasnoah/sprintfactory/internal/orchestrator"
	"github.com/lucasnoah/sprintfactory/internal/planning"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"config", "oracle", "ingest", "interview", "plan", "context",
		"status", "events", "analytics", "reset", "serve", "db", "templates", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	groups := map[string][]string{
		"interview": {"start", "answer", "chat", "show"},
		"plan":      {"generate", "correct", "show"},
		"ingest":    {"resumes", "backlog"},
		"oracle":    {"resolve", "test"},
		"db":        {"migrate", "reset"},
		"config":    {"validate", "show"},
	}
	for group, subs := range groups {
		for _, sub := range subs {
			out, err := executeCommand(group, sub, "--help")
			if err != nil {
				t.Errorf("%s %s --help failed: %v", group, sub, err)
			}
			if out == "" {
				t.Errorf("%s %s --help produced no output", group, sub)
			}
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}

// setupWorkspace writes a config pointing the store and sessions into a temp
// dir and installs a scripted oracle.
func setupWorkspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "sprintfactory.yaml")
	cfg := fmt.Sprintf(`
llm:
  model: llama3
store:
  backend: sqlite
  path: %s
session:
  backend: file
  dir: %s
`, filepath.Join(dir, "test.db"), filepath.Join(dir, "sessions"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	oracleBuilder = func(oracle.Settings) (oracle.Oracle, error) {
		return oracle.Func(func(ctx context.Context, p string) (string, error) {
			switch {
			case strings.Contains(p, "discovery interview"):
				if strings.Contains(p, "USER:") {
					return "QUESTION: Ready to generate sprint plan.\nSUFFICIENCY_SCORE: 90\nREADY_TO_PLAN: true", nil
				}
				return "QUESTION: What ships first?\nSUFFICIENCY_SCORE: 20\nREADY_TO_PLAN: false", nil
			case strings.Contains(p, "# Role: Sprint Scheduler"):
				return "| Task_ID | Assignee | Estimated_Hours | Risk_Level | Reasoning_Trace |\n|---|---|---|---|---|\n| T-101 | John Doe | 50 | High | Only Go dev |", nil
			case strings.Contains(p, "# Role: Guardrail Auditor"):
				return "STATUS: FLAGGED\nJohn is overloaded.", nil
			}
			return "Staffing notes.", nil
		}), nil
	}
	t.Cleanup(func() { oracleBuilder = nil })
	return dir, cfgPath
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlanningWorkflow(t *testing.T) {
	dir, cfg := setupWorkspace(t)
	resume := writeFile(t, dir, "john.txt", "John Doe\nGo, Postgres, 8 years")
	backlog := writeFile(t, dir, "backlog.csv", "ticket_id,description,complexity,required_skills\nT-101,Billing API,High,Go\n")

	out, err := executeCommand("--config", cfg, "ingest", "resumes", resume, filepath.Join(dir, "missing.pdf"), "--format", "text")
	if err != nil {
		t.Fatalf("ingest resumes: %v\n%s", err, out)
	}
	if !strings.Contains(out, "John Doe") || !strings.Contains(out, "Ingested 1, failed 1.") {
		t.Errorf("ingest output:\n%s", out)
	}

	if out, err = executeCommand("--config", cfg, "ingest", "backlog", backlog, "--format", "text"); err != nil {
		t.Fatalf("ingest backlog: %v\n%s", err, out)
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "interview", "start", "--format", "text")
	if err != nil {
		t.Fatalf("interview start: %v", err)
	}
	if !strings.Contains(out, "What ships first?") {
		t.Errorf("start output:\n%s", out)
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "plan", "generate", "--force=false", "--format", "text")
	if err == nil || !strings.Contains(err.Error(), "not ready") {
		t.Errorf("plan before ready: err = %v\n%s", err, out)
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "interview", "answer", "Billing", "first", "--format", "text")
	if err != nil {
		t.Fatalf("interview answer: %v", err)
	}
	if !strings.Contains(out, "READY") {
		t.Errorf("answer output:\n%s", out)
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "plan", "generate", "--force=false", "--format", "json")
	if err != nil {
		t.Fatalf("plan generate: %v\n%s", err, out)
	}
	var plan planning.SprintPlan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(plan.Assignments) != 1 || plan.Assignments[0].TaskID != "T-101" || plan.Status != planning.StatusFlagged {
		t.Errorf("plan = %+v", plan)
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "plan", "show", "--format", "text", "--raw=false")
	if err != nil {
		t.Fatalf("plan show: %v", err)
	}
	for _, want := range []string{"T-101", "John Doe", "FLAGGED", "over the 40h capacity"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan show missing %q:\n%s", want, out)
		}
	}

	out, err = executeCommand("--config", cfg, "--session", "wf", "status", "--format", "json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st orchestrator.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if st.Counts.Candidates != 1 || st.Counts.Backlog != 1 || !st.HasPlan || !st.ReadyToPlan {
		t.Errorf("status = %+v", st)
	}

	out, err = executeCommand("--config", cfg, "analytics", "--format", "json")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	var report analytics.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode analytics: %v\n%s", err, out)
	}
	if report.Plans.Generated != 1 || report.Plans.Failed != 0 || len(report.Durations) != 3 {
		t.Errorf("analytics = %+v", report)
	}

	if _, err := executeCommand("--config", cfg, "--session", "wf", "reset"); err == nil {
		t.Error("reset without --yes should fail")
	}
	if _, err := executeCommand("--config", cfg, "--session", "wf", "reset", "--yes"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out, _ = executeCommand("--config", cfg, "context", "--query", "")
	if !strings.Contains(out, "Context store is empty.") {
		t.Errorf("context after reset:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "llm:\n  model: \"\"\nstore:\n  backend: mongo\n")
	out, err := executeCommand("--config", bad, "config", "validate")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"llm.model", "store.backend"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestOracleResolve(t *testing.T) {
	_, cfg := setupWorkspace(t)
	out, err := executeCommand("--config", cfg, "oracle", "resolve", "claude-3-5-sonnet-latest", "--format", "text")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out, "anthropic") {
		t.Errorf("resolve output:\n%s", out)
	}
}

func TestTemplatesInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	if _, err := executeCommand("templates", "install", dir); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "schedule.md")); err != nil {
		t.Errorf("schedule.md not installed: %v", err)
	}
}
