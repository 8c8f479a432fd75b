// Package planning runs the three-stage crew that turns the combined context
// into a sprint schedule and an audit report.
package planning

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/oracle"
	"github.com/lucasnoah/sprintfactory/internal/prompt"
)

// Defaults for the capacity variables of the schedule and critique prompts.
const (
	DefaultSeniorityMultiplier = 1.5
	DefaultHoursPerWeek        = 40
)

// EventLog records pipeline progress. db.DB and pgstore.Store satisfy it.
type EventLog interface {
	LogEvent(ctx context.Context, sessionID, event, stage, detail string) error
}

// Options tune prompt variables and template lookup.
type Options struct {
	SeniorityMultiplier float64
	HoursPerWeek        int
	TemplateDir         string // on-disk overrides; empty uses built-ins only
}

// StageOutput is the text one stage produced.
type StageOutput struct {
	Stage    StageID       `json:"stage"`
	Text     string        `json:"text"`
	Duration time.Duration `json:"duration"`
}

// Result holds every stage's output in execution order.
type Result struct {
	Outputs   []StageOutput `json:"outputs"`
	Aggregate string        `json:"aggregate"` // last non-empty stage output
}

// Output returns the text of the given stage, or Aggregate when that stage
// produced nothing.
func (r *Result) Output(id StageID) string {
	for _, o := range r.Outputs {
		if o.Stage == id && strings.TrimSpace(o.Text) != "" {
			return o.Text
		}
	}
	return r.Aggregate
}

// Pipeline executes stages strictly in order.
type Pipeline struct {
	oracle    oracle.Oracle
	stages    []Stage
	opts      Options
	progress  io.Writer // live progress output; nil = silent
	logger    *log.Logger
	events    EventLog
	sessionID string
}

// New creates a pipeline over stages. A nil or empty stage list uses DefaultStages.
func New(o oracle.Oracle, stages []Stage, opts Options) *Pipeline {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	if opts.SeniorityMultiplier <= 0 {
		opts.SeniorityMultiplier = DefaultSeniorityMultiplier
	}
	if opts.HoursPerWeek <= 0 {
		opts.HoursPerWeek = DefaultHoursPerWeek
	}
	return &Pipeline{
		oracle: o,
		stages: stages,
		opts:   opts,
		logger: log.New(io.Discard, "", 0),
	}
}

// SetProgress sets a writer for live progress output (e.g. os.Stderr).
func (p *Pipeline) SetProgress(w io.Writer) {
	p.progress = w
}

// SetLogger sets the logger for stage failures.
func (p *Pipeline) SetLogger(l *log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// WithEvents returns a copy of p that records stage events for sessionID.
func (p *Pipeline) WithEvents(events EventLog, sessionID string) *Pipeline {
	cp := *p
	cp.events = events
	cp.sessionID = sessionID
	return &cp
}

// Stages returns the configured stages.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// logf prints a progress line if a progress writer is configured.
func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.progress != nil {
		fmt.Fprintf(p.progress, "  → "+format+"\n", args...)
	}
}

func (p *Pipeline) event(ctx context.Context, event string, stage StageID, detail string) {
	if p.events == nil {
		return
	}
	if err := p.events.LogEvent(ctx, p.sessionID, event, string(stage), detail); err != nil {
		p.logger.Printf("log event %s: %v", event, err)
	}
}

// Run executes every stage. Stage 1 receives combined as its context; each
// later stage receives the previous stage's output. Any stage failure aborts
// the run and no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, combined string) (*Result, error) {
	res := &Result{}
	previous := ""

	for i, st := range p.stages {
		p.logf("stage %d/%d: %s (%s)", i+1, len(p.stages), st.ID, st.Role)

		rendered, err := p.render(st, i == 0, combined, previous)
		if err != nil {
			p.event(ctx, "stage_failed", st.ID, err.Error())
			return nil, fmt.Errorf("stage %s: render prompt: %w", st.ID, err)
		}
		p.event(ctx, "stage_started", st.ID, fmt.Sprintf("prompt_bytes=%d", len(rendered)))

		start := time.Now()
		text, err := oracle.Instrument(p.oracle, "stage_"+string(st.ID)).Invoke(ctx, rendered)
		if err != nil {
			p.logger.Printf("stage %s failed: %v", st.ID, err)
			p.event(ctx, "stage_failed", st.ID, err.Error())
			return nil, fmt.Errorf("stage %s: %w", st.ID, err)
		}
		out := StageOutput{Stage: st.ID, Text: text, Duration: time.Since(start)}
		res.Outputs = append(res.Outputs, out)
		if strings.TrimSpace(text) != "" {
			res.Aggregate = text
		}
		p.logf("%s finished (%s, %d bytes)", st.ID, out.Duration.Round(time.Millisecond), len(text))
		p.event(ctx, "stage_completed", st.ID, fmt.Sprintf("output_bytes=%d duration_ms=%d", len(text), out.Duration.Milliseconds()))

		previous = text
	}
	return res, nil
}

func (p *Pipeline) render(st Stage, first bool, combined, previous string) (string, error) {
	tmpl, err := prompt.Load(st.Template, p.opts.TemplateDir)
	if err != nil {
		return "", err
	}
	vars := prompt.Vars{
		"role":                 st.Role,
		"goal":                 st.Goal,
		"backstory":            st.Backstory,
		"seniority_multiplier": strconv.FormatFloat(p.opts.SeniorityMultiplier, 'g', -1, 64),
		"hours_per_week":       strconv.Itoa(p.opts.HoursPerWeek),
	}
	if first {
		vars["combined_context"] = combined
	} else {
		vars["previous_output"] = previous
	}
	return prompt.Render(tmpl, vars)
}
