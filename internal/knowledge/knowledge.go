// Package knowledge is the context store: résumé chunks, backlog items and
// interview answers kept in three collections, with top-k retrieval and the
// combined-context rendering fed to the planning pipeline.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrDuplicateID is returned when a document id already exists in its collection.
var ErrDuplicateID = errors.New("duplicate id")

// Kind names one of the three collections.
type Kind string

const (
	Resumes        Kind = "resumes"
	Backlog        Kind = "backlog"
	ProjectContext Kind = "project_context"
)

// Kinds lists the collections in rendering order.
var Kinds = []Kind{Resumes, Backlog, ProjectContext}

// ParseKind accepts a collection name or a short alias.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "resumes", "resume", "profiles":
		return Resumes, nil
	case "backlog", "tickets":
		return Backlog, nil
	case "project_context", "context":
		return ProjectContext, nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Metadata keys.
const (
	MetaName        = "name"
	MetaFilename    = "filename"
	MetaUploadDate  = "upload_date"
	MetaCandidateID = "candidate_id"
	MetaChunkIndex  = "chunk_index"
	MetaTicketID    = "ticket_id"
	MetaComplexity  = "complexity"
	MetaSkills      = "required_skills"
	MetaType        = "type"
	MetaQuestion    = "question"
)

// InterviewResponse is the default type tag on project context documents.
const InterviewResponse = "interview_response"

// Document is one stored text with its metadata.
type Document struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Text      string            `json:"text"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Backend persists documents. List returns documents in insertion order.
type Backend interface {
	Add(ctx context.Context, docs ...Document) error
	Has(ctx context.Context, kind Kind, id string) (bool, error)
	List(ctx context.Context, kind Kind) ([]Document, error)
	Count(ctx context.Context, kind Kind) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// Options tunes a Store.
type Options struct {
	ChunkSize int // max characters per résumé chunk
	TopK      int // results per collection for queries
}

// DefaultOptions matches the shipped configuration.
var DefaultOptions = Options{ChunkSize: 500, TopK: 10}

// Store is the context store facade over a Backend. Ids derive from
// collection sizes at call time, so a single writer is assumed.
type Store struct {
	backend Backend
	opts    Options

	mu      sync.Mutex
	indexes map[Kind]*searchIndex
	gen     uint64 // bumped on every write and reset
}

// NewStore wraps a backend.
func NewStore(b Backend, opts Options) *Store {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions.ChunkSize
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions.TopK
	}
	return &Store{backend: b, opts: opts, indexes: make(map[Kind]*searchIndex)}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close releases search indexes and the backend.
func (s *Store) Close() error {
	s.dropIndexes()
	return s.backend.Close()
}

// AddProfile chunks a résumé and stores every chunk under
// candidate_<n>_chunk_<i>, where n is the number of candidates already stored.
// It returns the candidate id.
func (s *Store) AddProfile(ctx context.Context, text string, meta map[string]string) (string, error) {
	n, err := s.candidateCount(ctx)
	if err != nil {
		return "", err
	}
	candidateID := "candidate_" + strconv.Itoa(n)

	chunks := Chunk(text, s.opts.ChunkSize)
	docs := make([]Document, 0, len(chunks))
	now := time.Now().UTC()
	for i, chunk := range chunks {
		m := copyMeta(meta)
		m[MetaCandidateID] = candidateID
		m[MetaChunkIndex] = strconv.Itoa(i)
		docs = append(docs, Document{
			ID:        fmt.Sprintf("%s_chunk_%d", candidateID, i),
			Kind:      Resumes,
			Text:      chunk,
			Meta:      m,
			CreatedAt: now,
		})
	}

	if err := s.add(ctx, docs...); err != nil {
		return "", err
	}
	return candidateID, nil
}

// AddBacklogItem stores one ticket. An empty id becomes backlog_<n>.
func (s *Store) AddBacklogItem(ctx context.Context, text string, meta map[string]string, id string) (string, error) {
	if id == "" {
		n, err := s.backend.Count(ctx, Backlog)
		if err != nil {
			return "", fmt.Errorf("count backlog: %w", err)
		}
		id = "backlog_" + strconv.Itoa(n)
	}
	doc := Document{ID: id, Kind: Backlog, Text: text, Meta: copyMeta(meta), CreatedAt: time.Now().UTC()}
	if err := s.add(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

// AddContext stores an interview answer or correction as context_<n>.
func (s *Store) AddContext(ctx context.Context, text string, meta map[string]string) (string, error) {
	n, err := s.backend.Count(ctx, ProjectContext)
	if err != nil {
		return "", fmt.Errorf("count project context: %w", err)
	}
	m := copyMeta(meta)
	if m[MetaType] == "" {
		m[MetaType] = InterviewResponse
	}
	id := "context_" + strconv.Itoa(n)
	doc := Document{ID: id, Kind: ProjectContext, Text: text, Meta: m, CreatedAt: time.Now().UTC()}
	if err := s.add(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

// List returns every document of a collection in insertion order.
func (s *Store) List(ctx context.Context, kind Kind) ([]Document, error) {
	docs, err := s.backend.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return docs, nil
}

// Query returns up to k documents of a collection ranked against q. Matching
// documents come first by score; the rest of the k slots are filled with
// non-matching documents in insertion order. An empty q returns the whole
// collection. k <= 0 uses the configured top-k.
func (s *Store) Query(ctx context.Context, kind Kind, q string, k int) ([]Document, error) {
	gen := s.generation()
	docs, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if q == "" {
		return docs, nil
	}
	if k <= 0 {
		k = s.opts.TopK
	}

	ids, err := s.search(kind, gen, docs, q, k)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}

	byID := make(map[string]Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]Document, 0, k)
	seen := make(map[string]bool, k)
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
			seen[id] = true
		}
	}
	for _, d := range docs {
		if len(out) >= k {
			break
		}
		if !seen[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

// Counts summarises collection sizes.
type Counts struct {
	Candidates   int `json:"candidates"`
	ResumeChunks int `json:"resume_chunks"`
	Backlog      int `json:"backlog"`
	Context      int `json:"context"`
}

// Counts returns the size of every collection.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.ResumeChunks, err = s.backend.Count(ctx, Resumes); err != nil {
		return c, fmt.Errorf("count resumes: %w", err)
	}
	if c.Backlog, err = s.backend.Count(ctx, Backlog); err != nil {
		return c, fmt.Errorf("count backlog: %w", err)
	}
	if c.Context, err = s.backend.Count(ctx, ProjectContext); err != nil {
		return c, fmt.Errorf("count project context: %w", err)
	}
	if c.Candidates, err = s.candidateCount(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// Candidate is one stored résumé, reassembled from its chunks.
type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
	Chunks   int    `json:"chunks"`
}

// Candidates lists stored résumés in insertion order.
func (s *Store) Candidates(ctx context.Context) ([]Candidate, error) {
	docs, err := s.List(ctx, Resumes)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	pos := make(map[string]int)
	for _, d := range docs {
		id := d.Meta[MetaCandidateID]
		if id == "" {
			id = d.ID
		}
		if i, ok := pos[id]; ok {
			out[i].Chunks++
			continue
		}
		pos[id] = len(out)
		out = append(out, Candidate{ID: id, Name: nameOf(d), Filename: d.Meta[MetaFilename], Chunks: 1})
	}
	return out, nil
}

// Reset deletes every collection and drops the search indexes.
func (s *Store) Reset(ctx context.Context) error {
	s.dropIndexes()
	if err := s.backend.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return nil
}

func (s *Store) add(ctx context.Context, docs ...Document) error {
	for _, d := range docs {
		exists, err := s.backend.Has(ctx, d.Kind, d.ID)
		if err != nil {
			return fmt.Errorf("check %s %s: %w", d.Kind, d.ID, err)
		}
		if exists {
			return fmt.Errorf("%s %q: %w", d.Kind, d.ID, ErrDuplicateID)
		}
	}
	if err := s.backend.Add(ctx, docs...); err != nil {
		return fmt.Errorf("add to %s: %w", docs[0].Kind, err)
	}
	s.invalidate(docs[0].Kind)
	return nil
}

func (s *Store) candidateCount(ctx context.Context) (int, error) {
	docs, err := s.List(ctx, Resumes)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool)
	for _, d := range docs {
		id := d.Meta[MetaCandidateID]
		if id == "" {
			id = d.ID
		}
		seen[id] = true
	}
	return len(seen), nil
}

func copyMeta(meta map[string]string) map[string]string {
	m := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		m[k] = v
	}
	return m
}
