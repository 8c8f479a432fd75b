// Package orchestrator composes the interview, ingestion, context store and
// planning pipeline into per-session operations.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/db"
	"github.com/lucasnoah/sprintfactory/internal/ingest"
	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/metrics"
	"github.com/lucasnoah/sprintfactory/internal/planning"
	"github.com/lucasnoah/sprintfactory/internal/session"
)

var (
	// ErrNotReady is returned by GeneratePlan before the interview reached READY.
	ErrNotReady = errors.New("interview is not ready to plan")
	// ErrNoPlan is returned by Correct when the session has no plan yet.
	ErrNoPlan = errors.New("session has no plan to correct")
	// ErrEmptyInput is returned for blank answers and corrections.
	ErrEmptyInput = errors.New("empty input")
)

// Context metadata for corrections.
const (
	metaTimestamp  = "timestamp"
	typeCorrection = "correction"
)

// EventLog stores and lists planning events. db.DB and pgstore.Store satisfy it.
type EventLog interface {
	LogEvent(ctx context.Context, sessionID, event, stage, detail string) error
	Events(ctx context.Context, sessionID string, limit int) ([]db.PlanningEvent, error)
}

// Orchestrator composes planning operations.
type Orchestrator struct {
	store    *knowledge.Store
	sessions session.Store
	loop     *interview.Loop
	pipeline *planning.Pipeline
	ingester *ingest.Ingester
	events   EventLog // nil = events are not recorded
	logger   *log.Logger
	locks    *keyedMutex
}

// New creates an Orchestrator. events may be nil.
func New(
	store *knowledge.Store,
	sessions session.Store,
	loop *interview.Loop,
	pipeline *planning.Pipeline,
	events EventLog,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		sessions: sessions,
		loop:     loop,
		pipeline: pipeline,
		ingester: ingest.New(store),
		events:   events,
		logger:   log.New(io.Discard, "", 0),
		locks:    newKeyedMutex(),
	}
}

// SetLogger sets the logger used by the orchestrator and the ingester.
func (o *Orchestrator) SetLogger(l *log.Logger) {
	if l == nil {
		return
	}
	o.logger = l
	o.ingester.SetLogger(l)
}

// TurnResult is the outcome of StartInterview and Answer.
type TurnResult struct {
	SessionID        string             `json:"session_id"`
	Turn             interview.Turn     `json:"turn"`
	State            interview.State    `json:"state"`
	Phase            interview.Phase    `json:"phase"`
	AttachmentErrors []ingest.FileError `json:"attachment_errors,omitempty"`
}

func turnResult(s *session.Session, t interview.Turn) *TurnResult {
	return &TurnResult{SessionID: s.ID, Turn: t, State: s.Interview, Phase: s.Interview.Phase()}
}

func (o *Orchestrator) observe(op string, err error) {
	metrics.Operations.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		o.logger.Printf("%s failed: %v", op, err)
	}
}

func (o *Orchestrator) event(ctx context.Context, sessionID, event, detail string) {
	if o.events == nil {
		return
	}
	if err := o.events.LogEvent(ctx, sessionID, event, "", detail); err != nil {
		o.logger.Printf("log event %s: %v", event, err)
	}
}

// CreateSession stores a new empty session.
func (o *Orchestrator) CreateSession(ctx context.Context) (s *session.Session, err error) {
	defer func() { o.observe("create_session", err) }()
	s = session.New()
	if err := o.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	o.event(ctx, s.ID, "session_created", "")
	return s, nil
}

// Session loads a session.
func (o *Orchestrator) Session(ctx context.Context, id string) (*session.Session, error) {
	return o.sessions.Get(ctx, id)
}

// Sessions lists sessions, most recent first.
func (o *Orchestrator) Sessions(ctx context.Context) ([]*session.Session, error) {
	return o.sessions.List(ctx)
}

// StartInterview asks the first question of a session. A session that
// already has a conversation is returned as is, without calling the oracle.
func (o *Orchestrator) StartInterview(ctx context.Context, id string) (res *TurnResult, err error) {
	defer func() { o.observe("start_interview", err) }()
	unlock := o.locks.lock(id)
	defer unlock()

	s, err := session.GetOrCreate(ctx, o.sessions, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(s.History) > 0 {
		st := s.Interview
		return turnResult(s, interview.Turn{
			Question:         st.CurrentQuestion,
			SufficiencyScore: st.SufficiencyScore,
			ReadyToPlan:      st.ReadyToPlan,
		}), nil
	}

	existing, err := o.store.CombinedContext(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("combined context: %w", err)
	}
	turn := o.loop.NextTurn(ctx, nil, existing)
	s.Append(interview.RoleAssistant, turn.Question)
	s.Interview.Apply(turn)

	if err := o.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	metrics.SufficiencyScore.Set(float64(s.Interview.SufficiencyScore))
	o.event(ctx, s.ID, "interview_started", fmt.Sprintf("score=%d fallback=%t", turn.SufficiencyScore, turn.Fallback))
	return turnResult(s, turn), nil
}

// Answer records the user's answer (with any attachments appended as
// document blocks), stores it as project context and asks the next question.
func (o *Orchestrator) Answer(ctx context.Context, id, answer string, attachments ...ingest.Source) (res *TurnResult, err error) {
	defer func() { o.observe("answer", err) }()

	blocks, attErrs := ingest.Attachments(attachments)
	full := ingest.WithAttachments(strings.TrimSpace(answer), blocks)
	if strings.TrimSpace(full) == "" {
		return nil, fmt.Errorf("answer: %w", ErrEmptyInput)
	}

	unlock := o.locks.lock(id)
	defer unlock()

	s, err := session.GetOrCreate(ctx, o.sessions, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	s.Append(interview.RoleUser, full)

	if _, err := o.store.AddContext(ctx, full, map[string]string{
		knowledge.MetaQuestion: s.Interview.CurrentQuestion,
		metaTimestamp:          now(),
	}); err != nil {
		// the answer still lives in the conversation log
		o.logger.Printf("store answer as context: %v", err)
	}

	existing, err := o.store.CombinedContext(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("combined context: %w", err)
	}
	turn := o.loop.NextTurn(ctx, s.History, existing)
	s.Append(interview.RoleAssistant, turn.Question)
	s.Interview.Apply(turn)

	if err := o.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	metrics.SufficiencyScore.Set(float64(s.Interview.SufficiencyScore))
	o.event(ctx, s.ID, "answer_recorded",
		fmt.Sprintf("score=%d ready=%t attachments=%d", s.Interview.SufficiencyScore, s.Interview.ReadyToPlan, len(attachments)-len(attErrs)))

	res = turnResult(s, turn)
	res.AttachmentErrors = attErrs
	return res, nil
}

// GeneratePlan runs the planning pipeline over the full combined context.
// Unless force is set the interview must have reached READY. The plan is
// saved only when every stage succeeded.
func (o *Orchestrator) GeneratePlan(ctx context.Context, id string, force bool) (plan *planning.SprintPlan, err error) {
	defer func() { o.observe("generate_plan", err) }()
	unlock := o.locks.lock(id)
	defer unlock()

	s, err := session.GetOrCreate(ctx, o.sessions, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !s.Interview.ReadyToPlan && !force {
		return nil, fmt.Errorf("%w (sufficiency %d/%d)", ErrNotReady, s.Interview.SufficiencyScore, o.loop.Threshold())
	}
	return o.plan(ctx, s, "plan_generated")
}

// Correct stores a correction as project context, records it in the
// conversation and regenerates the plan. If regeneration fails the session is
// left unchanged, but the stored correction context remains.
func (o *Orchestrator) Correct(ctx context.Context, id, correction string) (plan *planning.SprintPlan, err error) {
	defer func() { o.observe("correct_plan", err) }()
	correction = strings.TrimSpace(correction)
	if correction == "" {
		return nil, fmt.Errorf("correction: %w", ErrEmptyInput)
	}

	unlock := o.locks.lock(id)
	defer unlock()

	s, err := o.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.Plan == nil {
		return nil, ErrNoPlan
	}

	if _, err := o.store.AddContext(ctx, "CORRECTION: "+correction, map[string]string{
		knowledge.MetaType: typeCorrection,
		metaTimestamp:      now(),
	}); err != nil {
		return nil, fmt.Errorf("store correction: %w", err)
	}
	s.Append(interview.RoleUser, "Correction: "+correction)
	return o.plan(ctx, s, "plan_corrected")
}

func (o *Orchestrator) plan(ctx context.Context, s *session.Session, event string) (*planning.SprintPlan, error) {
	combined, err := o.store.CombinedContext(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("combined context: %w", err)
	}

	o.event(ctx, s.ID, "plan_started", fmt.Sprintf("context_bytes=%d", len(combined)))
	plan, err := o.pipeline.WithEvents(o.events, s.ID).Plan(ctx, combined)
	if err != nil {
		o.event(ctx, s.ID, "plan_failed", err.Error())
		return nil, fmt.Errorf("planning pipeline: %w", err)
	}

	s.Plan = plan
	if err := o.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	o.event(ctx, s.ID, event, fmt.Sprintf("tier=%s assignments=%d status=%s", plan.Tier, len(plan.Assignments), plan.Status))
	return plan, nil
}

// IngestResumes stores résumé files in the context store.
func (o *Orchestrator) IngestResumes(ctx context.Context, srcs []ingest.Source) ingest.BatchReport {
	rep := o.ingester.Resumes(ctx, srcs)
	o.observe("ingest_resumes", batchErr(rep))
	o.event(ctx, "", "resumes_ingested", fmt.Sprintf("ok=%d errors=%d", len(rep.Ingested), len(rep.Errors)))
	return rep
}

// IngestBacklog stores backlog files in the context store.
func (o *Orchestrator) IngestBacklog(ctx context.Context, srcs []ingest.Source) ingest.BatchReport {
	rep := o.ingester.Backlog(ctx, srcs)
	o.observe("ingest_backlog", batchErr(rep))
	o.event(ctx, "", "backlog_ingested", fmt.Sprintf("ok=%d errors=%d", len(rep.Ingested), len(rep.Errors)))
	return rep
}

func batchErr(rep ingest.BatchReport) error {
	if len(rep.Errors) == 0 {
		return nil
	}
	return rep.Errors[0]
}

// Context renders the combined context, optionally ranked against query.
func (o *Orchestrator) Context(ctx context.Context, query string) (string, error) {
	return o.store.CombinedContext(ctx, query)
}

// Status summarises a session and the context store.
type Status struct {
	SessionID        string                `json:"session_id,omitempty"`
	Phase            interview.Phase       `json:"phase,omitempty"`
	SufficiencyScore int                   `json:"sufficiency_score"`
	ReadyToPlan      bool                  `json:"ready_to_plan"`
	Threshold        int                   `json:"threshold"`
	Turns            int                   `json:"turns"`
	CurrentQuestion  string                `json:"current_question,omitempty"`
	HasPlan          bool                  `json:"has_plan"`
	Counts           knowledge.Counts      `json:"counts"`
	Candidates       []knowledge.Candidate `json:"candidates"`
}

// Status reports store counts and, when id names an existing session, its
// interview progress.
func (o *Orchestrator) Status(ctx context.Context, id string) (*Status, error) {
	counts, err := o.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	cands, err := o.store.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Counts: counts, Candidates: cands, Threshold: o.loop.Threshold()}
	if id == "" {
		return st, nil
	}

	s, err := o.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.SessionID = s.ID
	st.Phase = s.Interview.Phase()
	st.SufficiencyScore = s.Interview.SufficiencyScore
	st.ReadyToPlan = s.Interview.ReadyToPlan
	st.Turns = s.Interview.Turns
	st.CurrentQuestion = s.Interview.CurrentQuestion
	st.HasPlan = s.Plan != nil
	return st, nil
}

// Reset clears every context store collection and, when id is set, deletes
// that session so its interview starts over.
func (o *Orchestrator) Reset(ctx context.Context, id string) (err error) {
	defer func() { o.observe("reset", err) }()
	if id != "" {
		unlock := o.locks.lock(id)
		defer unlock()
	}

	if err := o.store.Reset(ctx); err != nil {
		return err
	}
	if id != "" {
		if err := o.sessions.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	metrics.SufficiencyScore.Set(0)
	o.event(ctx, id, "reset", "")
	return nil
}

// DeleteSession removes one session, leaving the context store alone.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) (err error) {
	defer func() { o.observe("delete_session", err) }()
	unlock := o.locks.lock(id)
	defer unlock()
	if err := o.sessions.Delete(ctx, id); err != nil {
		return err
	}
	o.event(ctx, id, "session_deleted", "")
	return nil
}

// Events lists recent planning events, newest first. An empty id lists all.
func (o *Orchestrator) Events(ctx context.Context, id string, limit int) ([]db.PlanningEvent, error) {
	if o.events == nil {
		return nil, nil
	}
	return o.events.Events(ctx, id, limit)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
