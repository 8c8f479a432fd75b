package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/config"
	"github.com/lucasnoah/sprintfactory/internal/extract"
	"github.com/lucasnoah/sprintfactory/internal/interview"
	"github.com/lucasnoah/sprintfactory/internal/planning"
)

func sample() *Session {
	s := New()
	s.Append(interview.RoleAssistant, "When is the deadline?")
	s.Append(interview.RoleUser, "March 1st")
	s.Interview.Apply(interview.Turn{Question: "Stack?", SufficiencyScore: 85, ReadyToPlan: true})
	s.Plan = &planning.SprintPlan{
		Assignments: []extract.TaskAssignment{{TaskID: "T-1", Assignee: "Ann", EstimatedHours: "3", RiskLevel: "Low", ReasoningTrace: "x"}},
		Status:      planning.StatusApproved,
	}
	return s
}

// exerciseStore runs the shared contract against any Store.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}

	s := sample()
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.History) != 2 || got.History[1].Content != "March 1st" {
		t.Errorf("history = %+v", got.History)
	}
	if !got.Interview.ReadyToPlan || got.Interview.SufficiencyScore != 85 {
		t.Errorf("interview = %+v", got.Interview)
	}
	if got.Plan == nil || got.Plan.Assignments[0].TaskID != "T-1" {
		t.Errorf("plan = %+v", got.Plan)
	}

	time.Sleep(2 * time.Millisecond)
	other := NewWithID("second")
	if err := st.Save(ctx, other); err != nil {
		t.Fatal(err)
	}
	list, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "second" {
		t.Errorf("list order = %v", ids(list))
	}

	if err := st.Delete(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(ctx, s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if err := st.Delete(ctx, s.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func ids(ss []*Session) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(t.TempDir()))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SPRINT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SPRINT_TEST_REDIS_ADDR not set")
	}
	st, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr, DB: 15, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for _, id := range []string{"second"} {
		st.Delete(context.Background(), id)
	}
	exerciseStore(t, st)
	st.Delete(context.Background(), "second")
}

func TestMemoryStoreCopies(t *testing.T) {
	st := NewMemoryStore()
	s := sample()
	if err := st.Save(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	s.Append(interview.RoleUser, "unsaved")
	got, _ := st.Get(context.Background(), s.ID)
	if len(got.History) != 2 {
		t.Error("mutating after Save must not change the stored session")
	}
}

func TestFileStoreRejectsBadIDs(t *testing.T) {
	st := NewFileStore(t.TempDir())
	for _, id := range []string{"../etc/passwd", "", "a/b", ".hidden"} {
		if _, err := st.Get(context.Background(), id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want validation error", id, err)
		}
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir)
	if err := st.Save(context.Background(), NewWithID("good")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := st.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Errorf("list = %v", ids(list))
	}
}

func TestReset(t *testing.T) {
	s := sample()
	id := s.ID
	s.Reset()
	if s.ID != id || len(s.History) != 0 || s.Plan != nil || s.Interview.ReadyToPlan {
		t.Errorf("after reset: %+v", s)
	}
}

func TestGetOrCreate(t *testing.T) {
	st := NewMemoryStore()
	s, err := GetOrCreate(context.Background(), st, "default")
	if err != nil || s.ID != "default" || len(s.History) != 0 {
		t.Fatalf("GetOrCreate = %+v, %v", s, err)
	}
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.Session{Backend: "file", Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*FileStore); !ok {
		t.Errorf("got %T", st)
	}
	if _, err := Open(context.Background(), config.Session{Backend: "etcd"}); err == nil {
		t.Error("unknown backend should fail")
	}
}
