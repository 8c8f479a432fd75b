// Package extract recovers task-assignment rows from the free-text schedule
// produced by the planning pipeline. Strategies run in decreasing order of
// confidence and the first one that yields rows wins.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasnoah/sprintfactory/internal/metrics"
)

// NA marks a field the text did not provide.
const NA = "N/A"

// DefaultReasoning fills an empty reasoning trace on table rows.
const DefaultReasoning = "See full report"

// PatternReasoning is the reasoning placeholder for rows found by PatternStrategy.
const PatternReasoning = "See full report below"

// Columns are the five column identities of an assignment table.
var Columns = []string{"Task_ID", "Assignee", "Estimated_Hours", "Risk_Level", "Reasoning_Trace"}

// TaskAssignment is one extracted row. Fields keep the text as written.
type TaskAssignment struct {
	TaskID         string `json:"task_id"`
	Assignee       string `json:"assignee"`
	EstimatedHours string `json:"estimated_hours"`
	RiskLevel      string `json:"risk_level"`
	ReasoningTrace string `json:"reasoning_trace"`
}

var hoursRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Hours returns the first number in EstimatedHours.
func (a TaskAssignment) Hours() (float64, bool) {
	m := hoursRe.FindString(a.EstimatedHours)
	if m == "" {
		return 0, false
	}
	h, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// Risk normalises RiskLevel to Low, Medium, High or unknown.
func (a TaskAssignment) Risk() string {
	r := strings.ToLower(a.RiskLevel)
	switch {
	case strings.Contains(r, "high"):
		return "High"
	case strings.Contains(r, "med"):
		return "Medium"
	case strings.Contains(r, "low"):
		return "Low"
	}
	return "unknown"
}

// Row returns the fields in Columns order.
func (a TaskAssignment) Row() []string {
	return []string{a.TaskID, a.Assignee, a.EstimatedHours, a.RiskLevel, a.ReasoningTrace}
}

// Tier names the strategy that produced a result.
type Tier string

const (
	TierTable   Tier = "table"
	TierPattern Tier = "pattern"
	TierNone    Tier = "none"
)

// Strategy turns text into rows. Implementations are pure.
type Strategy interface {
	Tier() Tier
	Extract(text string) []TaskAssignment
}

// DefaultChain is the markdown-table reconstruction followed by the line pattern.
var DefaultChain = []Strategy{TableStrategy{}, PatternStrategy{}}

// Result is the extraction outcome. Columns is always populated so an empty
// result still renders as an empty table.
type Result struct {
	Columns     []string         `json:"columns"`
	Assignments []TaskAssignment `json:"assignments"`
	Tier        Tier             `json:"tier"`
}

// Extract runs DefaultChain over text.
func Extract(text string) Result {
	return Run(DefaultChain, text)
}

// Assignments is Extract without the metadata.
func Assignments(text string) []TaskAssignment {
	return Extract(text).Assignments
}

// Run tries each strategy in order and returns the first non-empty result.
// A strategy that panics counts as having found nothing.
func Run(chain []Strategy, text string) Result {
	res := Result{Columns: append([]string(nil), Columns...), Assignments: []TaskAssignment{}, Tier: TierNone}
	for _, s := range chain {
		rows := safeExtract(s, text)
		if len(rows) > 0 {
			res.Assignments = rows
			res.Tier = s.Tier()
			break
		}
	}
	metrics.Extractions.WithLabelValues(string(res.Tier)).Inc()
	return res
}

func safeExtract(s Strategy, text string) (rows []TaskAssignment) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
		}
	}()
	return s.Extract(text)
}
