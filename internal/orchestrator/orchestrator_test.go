package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lucasnoah/sprintfactory/internal/db"
	"github.com/lucasnoah/sprintfactory/internal/extract"
	"github.com/lucasnoah/sprintfactory/internal/ingest"
	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/planning"
	"github.com/lucasnoah/sprintfactory/internal/session"
)

const scheduleTable = "| Task_ID | Assignee | Estimated_Hours | Risk_Level | Reasoning_Trace |\n" +
	"|---|---|---|---|---|\n" +
	"| T-101 | John Doe | 8 | Low | Skill match |"

// fakeOracle routes interview prompts and stage prompts to scripted replies.
type fakeOracle struct {
	mu         sync.Mutex
	interview  []string // consumed in order; the last one repeats
	scheduler  string
	failStages bool
	prompts    []string
}

func (f *fakeOracle) Invoke(ctx context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)

	switch {
	case strings.Contains(p, "discovery interview"):
		reply := f.interview[0]
		if len(f.interview) > 1 {
			f.interview = f.interview[1:]
		}
		return reply, nil
	case f.failStages:
		return "", errors.New("model overloaded")
	case strings.Contains(p, "# Role: Staffing Expert"):
		return "John Doe fits T-101.", nil
	case strings.Contains(p, "# Role: Sprint Scheduler"):
		return f.scheduler, nil
	case strings.Contains(p, "# Role: Guardrail Auditor"):
		return "STATUS: FLAGGED\nT-101 estimate is optimistic.", nil
	}
	return "", nil
}

func (f *fakeOracle) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type fixture struct {
	orch     *Orchestrator
	oracle   *fakeOracle
	store    *knowledge.Store
	sessions *session.MemoryStore
	db       *db.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := d.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	f := &fakeOracle{
		interview: []string{
			"QUESTION: What is the deadline?\nSUFFICIENCY_SCORE: 20\nREADY_TO_PLAN: false",
			"QUESTION: Which stack?\nSUFFICIENCY_SCORE: 60\nREADY_TO_PLAN: false",
			"QUESTION: All context gathered. Ready to generate sprint plan.\nSUFFICIENCY_SCORE: 85\nREADY_TO_PLAN: true",
		},
		scheduler: scheduleTable,
	}
	store := knowledge.NewStore(d, knowledge.DefaultOptions)
	sessions := session.NewMemoryStore()
	orch := New(store, sessions, interview.NewLoop(f, 80), planning.New(f, nil, planning.Options{}), d)
	return &fixture{orch: orch, oracle: f, store: store, sessions: sessions, db: d}
}

func TestInterviewFlow(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	res, err := fx.orch.StartInterview(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Turn.Question != "What is the deadline?" || res.Phase != interview.Collecting {
		t.Fatalf("first turn = %+v", res)
	}

	// starting again does not re-ask
	again, err := fx.orch.StartInterview(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Turn.Question != "What is the deadline?" || len(fx.oracle.prompts) != 1 {
		t.Errorf("restart called the oracle again: %+v", again)
	}

	res, err = fx.orch.Answer(ctx, "s1", "March 1st")
	if err != nil {
		t.Fatal(err)
	}
	if res.Turn.Question != "Which stack?" || res.State.SufficiencyScore != 60 {
		t.Errorf("second turn = %+v", res)
	}
	if !strings.Contains(fx.oracle.lastPrompt(), "USER: March 1st") {
		t.Error("interview prompt should include the new answer")
	}

	res, err = fx.orch.Answer(ctx, "s1", "Go and Postgres")
	if err != nil {
		t.Fatal(err)
	}
	if res.Phase != interview.Ready || !res.State.ReadyToPlan {
		t.Errorf("third turn = %+v", res)
	}

	s, err := fx.sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 5 || s.History[1].Role != interview.RoleUser || s.History[4].Role != interview.RoleAssistant {
		t.Errorf("history = %+v", s.History)
	}

	docs, err := fx.store.List(ctx, knowledge.ProjectContext)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Meta[knowledge.MetaQuestion] != "What is the deadline?" || docs[1].Text != "Go and Postgres" {
		t.Errorf("context docs = %+v", docs)
	}
	if !strings.Contains(fx.oracle.lastPrompt(), "EXISTING CONTEXT:") {
		t.Error("stored answers should be passed back as existing context")
	}
}

func TestAnswerWithAttachments(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	if _, err := fx.orch.StartInterview(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	res, err := fx.orch.Answer(ctx, "s1", "See attached.",
		ingest.Source{Name: "scope.txt", Data: []byte("MVP by June")},
		ingest.Source{Name: "deck.pptx", Data: []byte("??")},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.AttachmentErrors) != 1 || res.AttachmentErrors[0].File != "deck.pptx" {
		t.Errorf("attachment errors = %v", res.AttachmentErrors)
	}
	s, _ := fx.sessions.Get(ctx, "s1")
	if got := s.History[1].Content; got != "See attached.\n\n[Document: scope.txt]\nMVP by June" {
		t.Errorf("user turn = %q", got)
	}
}

func TestAnswerRejectsEmpty(t *testing.T) {
	fx := setup(t)
	if _, err := fx.orch.Answer(context.Background(), "s1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v", err)
	}
}

func TestGeneratePlan_RequiresReadiness(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	if _, err := fx.orch.StartInterview(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.orch.GeneratePlan(ctx, "s1", false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}

	plan, err := fx.orch.GeneratePlan(ctx, "s1", true)
	if err != nil {
		t.Fatalf("forced plan: %v", err)
	}
	want := extract.TaskAssignment{TaskID: "T-101", Assignee: "John Doe", EstimatedHours: "8", RiskLevel: "Low", ReasoningTrace: "Skill match"}
	if len(plan.Assignments) != 1 || plan.Assignments[0] != want {
		t.Errorf("assignments = %+v", plan.Assignments)
	}
	if plan.Status != planning.StatusFlagged {
		t.Errorf("status = %s", plan.Status)
	}

	s, _ := fx.sessions.Get(ctx, "s1")
	if s.Plan == nil || s.Plan.FullReport != plan.FullReport {
		t.Error("plan should be saved on the session")
	}
}

func TestGeneratePlan_FailureCommitsNothing(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.orch.StartInterview(ctx, "s1")
	if _, err := fx.orch.GeneratePlan(ctx, "s1", true); err != nil {
		t.Fatal(err)
	}
	before, _ := fx.sessions.Get(ctx, "s1")

	fx.oracle.failStages = true
	if _, err := fx.orch.GeneratePlan(ctx, "s1", true); err == nil {
		t.Fatal("expected pipeline error")
	}
	after, _ := fx.sessions.Get(ctx, "s1")
	if after.Plan == nil || !after.Plan.GeneratedAt.Equal(before.Plan.GeneratedAt) {
		t.Error("failed run must leave the previous plan in place")
	}

	events, err := fx.orch.Events(ctx, "s1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Event != "plan_failed" {
		t.Errorf("latest event = %+v", events)
	}
}

func TestCorrect(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.orch.StartInterview(ctx, "s1")

	if _, err := fx.orch.Correct(ctx, "s1", "Ann is on leave"); !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if _, err := fx.orch.GeneratePlan(ctx, "s1", true); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.orch.Correct(ctx, "s1", "Ann is on leave"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fx.oracle.prompts[len(fx.oracle.prompts)-3], "CORRECTION: Ann is on leave") {
		t.Error("staffing prompt should see the correction in the combined context")
	}

	s, _ := fx.sessions.Get(ctx, "s1")
	last := s.History[len(s.History)-1]
	if last.Role != interview.RoleUser || last.Content != "Correction: Ann is on leave" {
		t.Errorf("last turn = %+v", last)
	}
	docs, _ := fx.store.List(ctx, knowledge.ProjectContext)
	if docs[len(docs)-1].Meta[knowledge.MetaType] != "correction" {
		t.Errorf("correction meta = %v", docs[len(docs)-1].Meta)
	}

	if _, err := fx.orch.Correct(ctx, "s1", " "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("blank correction err = %v", err)
	}
}

func TestCorrect_FailureLeavesSession(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	fx.orch.StartInterview(ctx, "s1")
	fx.orch.GeneratePlan(ctx, "s1", true)
	before, _ := fx.sessions.Get(ctx, "s1")

	fx.oracle.failStages = true
	if _, err := fx.orch.Correct(ctx, "s1", "drop T-101"); err == nil {
		t.Fatal("expected error")
	}
	after, _ := fx.sessions.Get(ctx, "s1")
	if len(after.History) != len(before.History) {
		t.Error("correction turn must not be saved when regeneration fails")
	}
}

func TestIngestStatusAndReset(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	rep := fx.orch.IngestResumes(ctx, []ingest.Source{
		{Name: "john.txt", Data: []byte("John Doe\nGo, gRPC")},
		{Name: "bad.pdf", Data: []byte("nope")},
	})
	if len(rep.Ingested) != 1 || len(rep.Errors) != 1 {
		t.Fatalf("resume report = %+v", rep)
	}
	rep = fx.orch.IngestBacklog(ctx, []ingest.Source{
		{Name: "b.csv", Data: []byte("ticket_id,description,complexity,required_skills\nT-101,Billing API,High,Go\n")},
	})
	if len(rep.Ingested) != 1 || !rep.OK() {
		t.Fatalf("backlog report = %+v", rep)
	}
	fx.orch.StartInterview(ctx, "s1")

	text, err := fx.orch.Context(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"=== RESUME DATA ===", "Candidate: John Doe", "Ticket: T-101 (Complexity: High, Skills: Go)"} {
		if !strings.Contains(text, want) {
			t.Errorf("context missing %q:\n%s", want, text)
		}
	}

	st, err := fx.orch.Status(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Counts.Candidates != 1 || st.Counts.Backlog != 1 || st.Turns != 1 || st.Phase != interview.Collecting || st.Threshold != 80 {
		t.Errorf("status = %+v", st)
	}

	if err := fx.orch.Reset(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	st, _ = fx.orch.Status(ctx, "s1")
	if st.Counts.Candidates != 0 || st.Counts.Backlog != 0 || st.SessionID != "" {
		t.Errorf("after reset = %+v", st)
	}
	if _, err := fx.sessions.Get(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("session should be deleted, err = %v", err)
	}

	events, _ := fx.orch.Events(ctx, "", 0)
	if len(events) == 0 || events[0].Event != "reset" {
		t.Errorf("events = %+v", events)
	}
}

func TestCreateAndDeleteSession(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	s, err := fx.orch.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := session.ValidateID(s.ID); err != nil {
		t.Errorf("generated id: %v", err)
	}
	list, _ := fx.orch.Sessions(ctx)
	if len(list) != 1 {
		t.Fatalf("sessions = %d", len(list))
	}
	if err := fx.orch.DeleteSession(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.orch.Session(ctx, s.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestKeyedMutexSerialises(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("s")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d", counter)
	}
	if len(k.locks) != 0 {
		t.Errorf("locks leaked: %d", len(k.locks))
	}
}
