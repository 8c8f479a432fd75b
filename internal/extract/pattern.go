package extract

import (
	"regexp"
	"strings"
)

// assignmentLineRe matches one-line assignments of the form
//
//	T-101: Jane Doe, Hours: 8, Risk: Low
//
// with optional "Task"/"Assignee:" labels, list bullets and markdown bold.
// Ids may be T-101, S1-T3, PROJ-42, T101 or a bare number. Text after the
// risk level is ignored.
var assignmentLineRe = regexp.MustCompile(`(?im)^[ \t*\-]*(?:task[_ \t]*(?:id)?[: \t]*)?` +
	`(?P<task>s\d+-t\d+|[a-z]{1,10}-\d+|t\d+|\d+)[ \t*]*:[ \t*]*` +
	`(?:assignee[ \t]*:[ \t]*)?` +
	`(?P<assignee>\p{L}[\p{L} .'\-]*?)[ \t]*` +
	`(?:,[ \t]*(?:estimated[_ \t]*)?hours?[ \t]*:[ \t]*(?P<hours>\d+(?:\.\d+)?)[ \t]*(?:h|hrs?|hours)?)?[ \t]*` +
	`(?:,[ \t]*risk(?:[_ \t]*level)?[ \t]*:[ \t]*(?P<risk>[a-z]+)\b[^\n]*|[.;]?[ \t\r]*)$`)

// PatternStrategy is the fallback for schedules written as prose lines
// instead of a table.
type PatternStrategy struct{}

func (PatternStrategy) Tier() Tier { return TierPattern }

func (PatternStrategy) Extract(text string) []TaskAssignment {
	var (
		out      []TaskAssignment
		task     = assignmentLineRe.SubexpIndex("task")
		assignee = assignmentLineRe.SubexpIndex("assignee")
		hours    = assignmentLineRe.SubexpIndex("hours")
		risk     = assignmentLineRe.SubexpIndex("risk")
	)
	for _, m := range assignmentLineRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[assignee])
		if name == "" {
			continue
		}
		out = append(out, TaskAssignment{
			TaskID:         m[task],
			Assignee:       name,
			EstimatedHours: orNA(m[hours]),
			RiskLevel:      orNA(m[risk]),
			ReasoningTrace: PatternReasoning,
		})
	}
	return out
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return NA
	}
	return s
}
