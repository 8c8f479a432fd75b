package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(NewMemoryBackend(), Options{ChunkSize: 500, TopK: 10})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 10, []string{""}},
		{"fits", "one two three", 500, []string{"one two three"}},
		{"splits on words", "aaaa bbbb cccc", 10, []string{"aaaa bbbb", "cccc"}},
		{"long word alone", "tiny supercalifragilistic end", 8, []string{"tiny", "supercalifragilistic", "end"}},
		{"collapses whitespace", "a\n\nb\tc", 500, []string{"a b c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.size)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Chunk() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunkRespectsLimit(t *testing.T) {
	text := strings.Repeat("engineer ", 400)
	for _, c := range Chunk(text, 500) {
		if len(c) > 500 {
			t.Errorf("chunk length %d exceeds 500", len(c))
		}
	}
}

func TestAddProfileIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	long := strings.Repeat("kubernetes ", 100) // ~1100 chars, 3 chunks
	id, err := s.AddProfile(ctx, long, map[string]string{MetaName: "Alice Smith"})
	if err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if id != "candidate_0" {
		t.Errorf("first id = %q, want candidate_0", id)
	}

	id2, err := s.AddProfile(ctx, "Bob Jones react", map[string]string{MetaName: "Bob Jones"})
	if err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if id2 != "candidate_1" {
		t.Errorf("second id = %q, want candidate_1", id2)
	}

	docs, _ := s.List(ctx, Resumes)
	if len(docs) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(docs))
	}
	if docs[0].ID != "candidate_0_chunk_0" || docs[2].ID != "candidate_0_chunk_2" || docs[3].ID != "candidate_1_chunk_0" {
		t.Errorf("unexpected ids: %s %s %s", docs[0].ID, docs[2].ID, docs[3].ID)
	}
	if docs[1].Meta[MetaChunkIndex] != "1" || docs[1].Meta[MetaName] != "Alice Smith" {
		t.Errorf("chunk metadata = %v", docs[1].Meta)
	}

	cands, err := s.Candidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 || cands[0].Chunks != 3 || cands[1].Name != "Bob Jones" {
		t.Errorf("Candidates() = %+v", cands)
	}
}

func TestAddBacklogItem(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.AddBacklogItem(ctx, "Build login", map[string]string{MetaTicketID: "PROJ-1"}, "PROJ-1")
	if err != nil || id != "PROJ-1" {
		t.Fatalf("AddBacklogItem = %q, %v", id, err)
	}
	id, err = s.AddBacklogItem(ctx, "Unnamed work", nil, "")
	if err != nil || id != "backlog_1" {
		t.Fatalf("derived id = %q, %v; want backlog_1", id, err)
	}

	_, err = s.AddBacklogItem(ctx, "Again", nil, "PROJ-1")
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate err = %v, want ErrDuplicateID", err)
	}
	if n, _ := s.Backend().Count(ctx, Backlog); n != 2 {
		t.Errorf("backlog count = %d, want 2", n)
	}
}

func TestAddContextTagsType(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.AddContext(ctx, "Deadline is March 1", map[string]string{MetaQuestion: "When?"})
	if err != nil || id != "context_0" {
		t.Fatalf("AddContext = %q, %v", id, err)
	}
	docs, _ := s.List(ctx, ProjectContext)
	if docs[0].Meta[MetaType] != InterviewResponse {
		t.Errorf("type = %q, want %q", docs[0].Meta[MetaType], InterviewResponse)
	}
	if docs[0].Meta[MetaQuestion] != "When?" {
		t.Errorf("question meta lost: %v", docs[0].Meta)
	}
}

func TestQueryRanksMatchesFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.AddProfile(ctx, "Alice knows Kubernetes and Go", map[string]string{MetaName: "Alice"})
	s.AddProfile(ctx, "Bob writes React frontends", map[string]string{MetaName: "Bob"})
	s.AddProfile(ctx, "Carol builds data pipelines in Python", map[string]string{MetaName: "Carol"})

	top, err := s.Query(ctx, Resumes, "react", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(top) != 1 || top[0].Meta[MetaName] != "Bob" {
		t.Fatalf("top-1 = %+v", top)
	}

	all, err := s.Query(ctx, Resumes, "react", 3)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{all[0].Meta[MetaName], all[1].Meta[MetaName], all[2].Meta[MetaName]}
	if strings.Join(names, ",") != "Bob,Alice,Carol" {
		t.Errorf("order = %v, want Bob first then insertion order", names)
	}

	// a write invalidates the cached index
	s.AddProfile(ctx, "Dave is a React Native specialist", map[string]string{MetaName: "Dave"})
	after, _ := s.Query(ctx, Resumes, "native", 1)
	if len(after) != 1 || after[0].Meta[MetaName] != "Dave" {
		t.Errorf("stale index: %+v", after)
	}
}

func TestCombinedContextFormat(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.AddProfile(ctx, "Senior Go engineer", map[string]string{MetaName: "Alice"})
	s.AddBacklogItem(ctx, "Build login", map[string]string{
		MetaTicketID:   "PROJ-1",
		MetaComplexity: "High",
		MetaSkills:     "Go, OAuth",
	}, "PROJ-1")
	s.AddContext(ctx, "Sprint is two weeks", nil)

	got, err := s.CombinedContext(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	want := "=== RESUME DATA ===\n" +
		"\nCandidate: Alice\nSenior Go engineer\n\n" +
		"\n=== BACKLOG ITEMS ===\n" +
		"\nTicket: PROJ-1 (Complexity: High, Skills: Go, OAuth)\nBuild login\n\n" +
		"\n=== PROJECT CONTEXT (INTERVIEW) ===\n" +
		"\nSprint is two weeks\n"
	if got != want {
		t.Errorf("CombinedContext() =\n%q\nwant\n%q", got, want)
	}
}

func TestCombinedContextOmitsEmptySections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, _ := s.CombinedContext(ctx, "")
	if got != "" {
		t.Errorf("empty store rendered %q", got)
	}

	s.AddContext(ctx, "Only context", nil)
	got, _ = s.CombinedContext(ctx, "")
	if strings.Contains(got, ResumeHeader) || strings.Contains(got, BacklogHeader) {
		t.Errorf("empty sections rendered: %q", got)
	}
	if !strings.Contains(got, ContextHeader) {
		t.Errorf("missing context header: %q", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	s.AddProfile(ctx, "text", map[string]string{MetaName: "A"})
	s.AddBacklogItem(ctx, "t", nil, "T-1")
	s.AddContext(ctx, "c", nil)
	s.Query(ctx, Resumes, "text", 1)

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c != (Counts{}) {
		t.Errorf("counts after reset = %+v", c)
	}

	id, _ := s.AddProfile(ctx, "fresh", nil)
	if id != "candidate_0" {
		t.Errorf("ids should restart after reset, got %q", id)
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"resumes": Resumes, "tickets": Backlog, "context": ProjectContext} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("nope"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

// writeDuringList adds a document the first time a collection is listed,
// landing a write between a query's snapshot and its index build.
type writeDuringList struct {
	*MemoryBackend
	onList func()
}

func (b *writeDuringList) List(ctx context.Context, kind Kind) ([]Document, error) {
	docs, err := b.MemoryBackend.List(ctx, kind)
	if f := b.onList; f != nil {
		b.onList = nil
		f()
	}
	return docs, err
}

func TestQueryDoesNotCacheOvertakenSnapshot(t *testing.T) {
	ctx := context.Background()
	b := &writeDuringList{MemoryBackend: NewMemoryBackend()}
	s := NewStore(b, Options{ChunkSize: 500, TopK: 10})
	t.Cleanup(func() { s.Close() })

	if _, err := s.AddContext(ctx, "alpha rollout plan", nil); err != nil {
		t.Fatal(err)
	}
	b.onList = func() {
		if _, err := s.AddContext(ctx, "beta migration window", nil); err != nil {
			t.Errorf("concurrent add: %v", err)
		}
	}
	if _, err := s.Query(ctx, ProjectContext, "migration", 1); err != nil {
		t.Fatalf("first query: %v", err)
	}

	got, err := s.Query(ctx, ProjectContext, "migration", 1)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if len(got) != 1 || got[0].Text != "beta migration window" {
		t.Errorf("second query = %+v, want the document written during the first", got)
	}
}
