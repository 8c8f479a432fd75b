// Package analytics summarises the planning event log: how long each crew
// stage takes, how often it fails, and how planning runs end.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/db"
)

// StageDuration holds duration stats for a stage.
type StageDuration struct {
	Stage string  `json:"stage"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg_seconds"`
	P50   float64 `json:"p50_seconds"`
	P95   float64 `json:"p95_seconds"`
}

// StageFailureRate holds outcome counts per stage.
type StageFailureRate struct {
	Stage     string  `json:"stage"`
	Started   int     `json:"started"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	FailedPct float64 `json:"failed_pct"`
}

// PlanOutcomes counts how planning runs ended.
type PlanOutcomes struct {
	Runs       int     `json:"runs"`
	Generated  int     `json:"generated"`
	Corrected  int     `json:"corrected"`
	Failed     int     `json:"failed"`
	SuccessPct float64 `json:"success_pct"`
	Sessions   int     `json:"sessions"`
	// AvgCorrections is corrections per session that produced a plan.
	AvgCorrections float64 `json:"avg_corrections"`
}

// Report bundles every summary.
type Report struct {
	Since     string             `json:"since,omitempty"`
	Durations []StageDuration    `json:"stage_durations"`
	Failures  []StageFailureRate `json:"stage_failures"`
	Plans     PlanOutcomes       `json:"plans"`
}

// timestamp formats to try when parsing timestamps from the database
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	time.RFC3339Nano,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

// Since keeps events at or after t. Events with unparseable timestamps are
// kept. A zero t keeps everything.
func Since(events []db.PlanningEvent, t time.Time) []db.PlanningEvent {
	if t.IsZero() {
		return events
	}
	var out []db.PlanningEvent
	for _, e := range events {
		ts, err := parseTimestamp(e.Timestamp)
		if err != nil || !ts.Before(t) {
			out = append(out, e)
		}
	}
	return out
}

// Build computes every summary over events (any order).
func Build(events []db.PlanningEvent) Report {
	return Report{
		Durations: StageDurations(events),
		Failures:  StageFailureRates(events),
		Plans:     Plans(events),
	}
}

// StageDurations reads duration_ms from stage_completed details.
func StageDurations(events []db.PlanningEvent) []StageDuration {
	byStage := make(map[string][]float64)
	for _, e := range events {
		if e.Event != "stage_completed" || e.Stage == "" {
			continue
		}
		ms, ok := detailInt(e.Detail, "duration_ms")
		if !ok {
			continue
		}
		byStage[e.Stage] = append(byStage[e.Stage], float64(ms)/1000)
	}

	var results []StageDuration
	for stage, durations := range byStage {
		sort.Float64s(durations)
		results = append(results, StageDuration{
			Stage: stage,
			Count: len(durations),
			Avg:   avg(durations),
			P50:   percentile(durations, 50),
			P95:   percentile(durations, 95),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results
}

// StageFailureRates counts started, completed and failed events per stage.
// Failed percentages use started runs as denominator.
func StageFailureRates(events []db.PlanningEvent) []StageFailureRate {
	byStage := make(map[string]*StageFailureRate)
	for _, e := range events {
		if e.Stage == "" {
			continue
		}
		r, ok := byStage[e.Stage]
		if !ok {
			r = &StageFailureRate{Stage: e.Stage}
			byStage[e.Stage] = r
		}
		switch e.Event {
		case "stage_started":
			r.Started++
		case "stage_completed":
			r.Completed++
		case "stage_failed":
			r.Failed++
		}
	}

	results := make([]StageFailureRate, 0, len(byStage))
	for _, r := range byStage {
		total := r.Started
		if total < r.Failed {
			// render failures are logged without a start
			total = r.Failed
		}
		r.FailedPct = pct(r.Failed, total)
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Stage < results[j].Stage
	})
	return results
}

// Plans summarises plan_generated, plan_corrected and plan_failed events.
func Plans(events []db.PlanningEvent) PlanOutcomes {
	var p PlanOutcomes
	corrections := make(map[string]int)
	planned := make(map[string]bool)
	for _, e := range events {
		switch e.Event {
		case "plan_generated":
			p.Generated++
			planned[e.SessionID] = true
		case "plan_corrected":
			p.Corrected++
			planned[e.SessionID] = true
			corrections[e.SessionID]++
		case "plan_failed":
			p.Failed++
		default:
			continue
		}
		p.Runs++
	}
	p.Sessions = len(planned)
	p.SuccessPct = pct(p.Generated+p.Corrected, p.Runs)
	if p.Sessions > 0 {
		total := 0
		for _, n := range corrections {
			total += n
		}
		p.AvgCorrections = math.Round(float64(total)/float64(p.Sessions)*10) / 10
	}
	return p
}

// detailInt extracts key=<int> from a space-separated detail string.
func detailInt(detail, key string) (int64, bool) {
	for _, field := range strings.Fields(detail) {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k != key {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
