package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Scan windows, all measured in lines from the last captured row.
const (
	continuationWindow      = 5
	closeContinuationWindow = 2
	reasoningLookahead      = 14
	maxReasoningLines       = 5
	longReasoningLine       = 50
	assigneeMatchPrefix     = 10
)

// reasoningMarkers flag a prose line as part of the row above it.
var reasoningMarkers = []string{"assignment:", "estimate:", "risk:", "**"}

// headerKeys in claim order. Each header cell is claimed by at most one key.
var headerKeys = []struct {
	col       int
	fragments []string
}{
	{colTask, []string{"task"}},
	{colAssignee, []string{"assign"}},
	{colHours, []string{"hour", "time", "estimat"}},
	{colRisk, []string{"risk"}},
	{colReason, []string{"reason", "trace"}},
}

const (
	colTask = iota
	colAssignee
	colHours
	colRisk
	colReason
	numCols
)

// taskRowRe recognises a ticket id such as T-101, S1-T3, PROJ-42 or T101.
var taskRowRe = regexp.MustCompile(`(?i)\b(?:s\d+-t\d+|[a-z]{1,10}-\d+|t\d+)\b`)

// TableStrategy rebuilds markdown-ish tables, including ones whose reasoning
// cell wrapped onto following lines.
type TableStrategy struct{}

func (TableStrategy) Tier() Tier { return TierTable }

type capturedRow struct {
	line int // index into the original lines
	text string
	cont []int // continuation line indices
}

type section struct {
	rows []capturedRow
}

func (TableStrategy) Extract(text string) []TaskAssignment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	var out []TaskAssignment
	for _, sec := range scanSections(lines) {
		out = append(out, parseSection(lines, sec)...)
	}
	return out
}

// scanSections groups lines into table sections. A section opens on a pipe
// line that mentions a column name and closes on prose that is too far from
// the last row to be a wrapped cell.
func scanSections(lines []string) []*section {
	var (
		sections []*section
		cur      *section
		lastRow  int
	)
	for i, raw := range lines {
		s := strings.TrimSpace(raw)
		if cur == nil {
			if !isHeaderLine(s) {
				continue
			}
			cur = &section{}
			sections = append(sections, cur)
		}

		gap := i - lastRow
		switch {
		case strings.Contains(s, "|") && hasAlnum(s):
			cur.rows = append(cur.rows, capturedRow{line: i, text: s})
			lastRow = i
		case strings.Contains(s, "|"):
			// separator row
		case s == "":
		case len(cur.rows) > 0 && gap <= continuationWindow &&
			(hasMarker(s) || gap <= closeContinuationWindow):
			r := &cur.rows[len(cur.rows)-1]
			r.cont = append(r.cont, i)
		default:
			cur = nil
		}
	}
	return sections
}

type parsedRow struct {
	cells []string
	src   capturedRow
}

func parseSection(lines []string, sec *section) []TaskAssignment {
	var rows []parsedRow
	for _, r := range sec.rows {
		cells := splitCells(r.text)
		if len(cells) == 0 || isSeparator(cells) {
			continue
		}
		rows = append(rows, parsedRow{cells: cells, src: r})
	}
	if len(rows) < 2 {
		return nil
	}

	header := rows[0].cells
	idx := resolveColumns(header)
	if idx[colTask] < 0 || idx[colAssignee] < 0 {
		return nil
	}
	need := max(idx[colTask], idx[colAssignee])

	bounds := sectionBounds(sec)
	var out []TaskAssignment
	for _, r := range rows[1:] {
		if len(r.cells) <= need || isRepeatedHeader(r.cells, header, idx) {
			continue
		}
		a := TaskAssignment{
			TaskID:         cell(r.cells, idx[colTask]),
			Assignee:       cell(r.cells, idx[colAssignee]),
			EstimatedHours: cell(r.cells, idx[colHours]),
			RiskLevel:      cell(r.cells, idx[colRisk]),
		}
		if a.TaskID == NA || a.Assignee == NA {
			continue
		}
		a.ReasoningTrace = reasoning(lines, r, idx[colReason], a, bounds)
		out = append(out, a)
	}
	return out
}

// reasoning joins the reasoning cell, any wrapped continuation lines and the
// prose found by rescan.
func reasoning(lines []string, r parsedRow, col int, a TaskAssignment, b bounds) string {
	var parts []string
	if col >= 0 && col < len(r.cells) {
		parts = append(parts, r.cells[col])
	}
	for _, i := range r.src.cont {
		parts = append(parts, strings.TrimSpace(lines[i]))
	}
	parts = append(parts, rescan(lines, r.src, a, b)...)

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if text == "" {
		return DefaultReasoning
	}
	return text
}

// bounds records which lines of a section are rows and which were merged
// into a row as continuation text.
type bounds struct {
	rows   map[int]bool
	merged map[int]bool
}

func sectionBounds(sec *section) bounds {
	b := bounds{rows: make(map[int]bool), merged: make(map[int]bool)}
	for _, r := range sec.rows {
		b.rows[r.line] = true
		for _, i := range r.cont {
			b.merged[i] = true
		}
	}
	return b
}

// rescan walks the original text below the row's source line and collects
// reasoning prose that was not captured as part of the table. It stops at the
// next row of the table and skips text already merged into any row.
func rescan(lines []string, row capturedRow, a TaskAssignment, b bounds) []string {
	start := locateRow(lines, row, a)
	if start < 0 {
		return nil
	}

	var got []string
	for j := start + 1; j <= start+reasoningLookahead && j < len(lines); j++ {
		s := strings.TrimSpace(lines[j])
		if b.rows[j] || (strings.Contains(s, "|") && taskRowRe.MatchString(s)) {
			break
		}
		if s == "" || strings.HasPrefix(s, "|") || b.merged[j] {
			continue
		}
		if len(got) >= maxReasoningLines {
			break
		}
		if hasMarker(s) || len(got) > 0 || len(s) > longReasoningLine {
			got = append(got, s)
		}
	}
	return got
}

// locateRow confirms the row's source line by task id and assignee prefix.
// The captured index is tried first so duplicate ids resolve to their own row.
func locateRow(lines []string, row capturedRow, a TaskAssignment) int {
	prefix := a.Assignee
	if len(prefix) > assigneeMatchPrefix {
		prefix = prefix[:assigneeMatchPrefix]
	}
	matches := func(s string) bool {
		return strings.Contains(s, "|") && strings.Contains(s, a.TaskID) && strings.Contains(s, prefix)
	}
	if row.line < len(lines) && matches(lines[row.line]) {
		return row.line
	}
	for i, s := range lines {
		if matches(s) {
			return i
		}
	}
	return -1
}

func resolveColumns(header []string) [numCols]int {
	var idx [numCols]int
	for i := range idx {
		idx[i] = -1
	}
	claimed := make([]bool, len(header))
	for _, key := range headerKeys {
		for i, h := range header {
			if claimed[i] || !containsAny(strings.ToLower(h), key.fragments) {
				continue
			}
			idx[key.col] = i
			claimed[i] = true
			break
		}
	}
	return idx
}

// isRepeatedHeader catches header rows repeated mid-table, e.g. after a page
// break: either a copy of the header, or a row whose task and assignee cells
// are themselves column names.
func isRepeatedHeader(cells, header []string, idx [numCols]int) bool {
	if len(cells) == len(header) {
		same := true
		for i := range cells {
			if !strings.EqualFold(cells[i], header[i]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return isColumnName(cell(cells, idx[colTask]), headerKeys[colTask].fragments) &&
		isColumnName(cell(cells, idx[colAssignee]), headerKeys[colAssignee].fragments)
}

// isColumnName reports whether c reads like a header cell rather than a value.
// Ids such as "Task 12" carry a digit and are values.
func isColumnName(c string, fragments []string) bool {
	return containsAny(strings.ToLower(c), fragments) && !strings.ContainsAny(c, "0123456789")
}

func splitCells(line string) []string {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) || cells[i] == "" {
		return NA
	}
	return cells[i]
}

func isHeaderLine(s string) bool {
	if !strings.Contains(s, "|") {
		return false
	}
	lower := strings.ToLower(s)
	for _, key := range headerKeys {
		if containsAny(lower, key.fragments) {
			return true
		}
	}
	return false
}

func hasMarker(s string) bool {
	return containsAny(strings.ToLower(s), reasoningMarkers)
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
