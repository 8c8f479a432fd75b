package planning

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/extract"
)

// Audit verdicts read from the critique report.
const (
	StatusApproved = "APPROVED"
	StatusFlagged  = "FLAGGED"
	StatusUnknown  = "UNKNOWN"
)

var statusRe = regexp.MustCompile(`(?im)^[\s#>*\-]*status[\s*]*:[\s*]*(approved|flagged)\b`)

// SprintPlan is what a successful run commits to the session. Assignments
// come from the schedule text and FullReport is the critique; the two are not
// reconciled, so a task the auditor rejects still appears in Assignments.
type SprintPlan struct {
	Columns      []string                 `json:"columns"`
	Assignments  []extract.TaskAssignment `json:"assignments"`
	Tier         extract.Tier             `json:"tier"`
	FullReport   string                   `json:"full_report"`
	Status       string                   `json:"status"`
	StaffingText string                   `json:"staffing_text"`
	ScheduleText string                   `json:"schedule_text"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

// Workload sums estimated hours per assignee.
func (sp *SprintPlan) Workload() []extract.Load {
	return extract.Workload(sp.Assignments)
}

// Plan runs the pipeline and assembles a SprintPlan.
func (p *Pipeline) Plan(ctx context.Context, combined string) (*SprintPlan, error) {
	res, err := p.Run(ctx, combined)
	if err != nil {
		return nil, err
	}
	return Assemble(res, time.Now().UTC()), nil
}

// Assemble builds a SprintPlan from a finished run.
func Assemble(res *Result, at time.Time) *SprintPlan {
	schedule := res.Output(Schedule)
	report := res.Output(Critique)
	ex := extract.Extract(schedule)
	return &SprintPlan{
		Columns:      ex.Columns,
		Assignments:  ex.Assignments,
		Tier:         ex.Tier,
		FullReport:   report,
		Status:       AuditStatus(report),
		StaffingText: res.Output(Staffing),
		ScheduleText: schedule,
		GeneratedAt:  at,
	}
}

// AuditStatus reads the first STATUS line of a critique report.
func AuditStatus(report string) string {
	m := statusRe.FindStringSubmatch(report)
	if m == nil {
		return StatusUnknown
	}
	return strings.ToUpper(m[1])
}
