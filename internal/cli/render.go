package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lucasnoah/sprintfactory/internal/extract"
	"github.com/lucasnoah/sprintfactory/internal/planning"
)

const reasoningWidth = 60

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle    = lipgloss.NewStyle().Bold(true)
	approvedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	flaggedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	riskStyles = map[string]lipgloss.Style{
		"High":   lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("9")),
		"Medium": lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("11")),
		"Low":    lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("10")),
	}
)

// assignmentTable renders the extracted rows as a bordered table.
func assignmentTable(rows []extract.TaskAssignment) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r.TaskID, r.Assignee, r.EstimatedHours, r.RiskLevel, truncate(r.ReasoningTrace, reasoningWidth)})
	}
	riskCol := 3
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(extract.Columns...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == riskCol && row >= 0 && row < len(rows) {
				if st, ok := riskStyles[rows[row].Risk()]; ok {
					return st
				}
			}
			return cellStyle
		}).
		String()
}

// workloadTable renders hours per assignee.
func workloadTable(loads []extract.Load) string {
	data := make([][]string, 0, len(loads))
	for _, l := range loads {
		hours := strconv.FormatFloat(l.Hours, 'f', -1, 64)
		if l.Unknown > 0 {
			hours += fmt.Sprintf(" (+%d unestimated)", l.Unknown)
		}
		data = append(data, []string{l.Assignee, strconv.Itoa(l.Tasks), hours})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Assignee", "Tasks", "Hours").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func renderPlan(w io.Writer, plan *planning.SprintPlan) {
	fmt.Fprintln(w, titleStyle.Render("Sprint plan"), dimStyle.Render(plan.GeneratedAt.Local().Format("2006-01-02 15:04")))
	if len(plan.Assignments) == 0 {
		fmt.Fprintln(w, "No task assignments could be extracted; see the full report below.")
	} else {
		fmt.Fprintln(w, assignmentTable(plan.Assignments))
		fmt.Fprintln(w, dimStyle.Render("extracted via "+string(plan.Tier)))
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Workload"))
		fmt.Fprintln(w, workloadTable(plan.Workload()))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Audit"), statusBadge(plan.Status))
	fmt.Fprintln(w, strings.TrimSpace(plan.FullReport))
}

func statusBadge(status string) string {
	switch status {
	case planning.StatusApproved:
		return approvedStyle.Render(status)
	case planning.StatusFlagged:
		return flaggedStyle.Render(status)
	}
	return dimStyle.Render(status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
