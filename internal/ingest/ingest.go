// Package ingest turns uploaded résumés, backlog files and interview
// attachments into context store documents. Files in a batch are processed
// independently; one bad file never aborts the rest.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/knowledge"
)

// metaSourceFile records which backlog file a ticket came from.
const metaSourceFile = "source_file"

// Source is one input file, read from disk or received as an upload.
type Source struct {
	Name string // base name; the extension selects the parser
	Data []byte
}

// Ext returns the lower-cased extension of the source name.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Name))
}

// ReadFiles loads paths into sources. Unreadable files are returned as errors
// and do not stop the others.
func ReadFiles(paths []string) ([]Source, []FileError) {
	var (
		srcs []Source
		errs []FileError
	)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, FileError{File: filepath.Base(p), Err: fmt.Errorf("read: %w", err)})
			continue
		}
		srcs = append(srcs, Source{Name: filepath.Base(p), Data: data})
	}
	return srcs, errs
}

// FileError is a per-file (or per-item) ingestion failure.
type FileError struct {
	File string
	Item string // ticket id for item-level failures
	Err  error
}

func (e FileError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s [%s]: %v", e.File, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// MarshalJSON renders the wrapped error as text.
func (e FileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		File  string `json:"file"`
		Item  string `json:"item,omitempty"`
		Error string `json:"error"`
	}{e.File, e.Item, e.Err.Error()})
}

// Record is one stored candidate or ticket.
type Record struct {
	File  string `json:"file"`
	ID    string `json:"id"`
	Label string `json:"label"` // candidate name or ticket id
}

// BatchReport summarises a batch.
type BatchReport struct {
	Ingested []Record    `json:"ingested"`
	Errors   []FileError `json:"errors"`
	Warnings []string    `json:"warnings"`
}

// Merge appends another report's entries.
func (r *BatchReport) Merge(o BatchReport) {
	r.Ingested = append(r.Ingested, o.Ingested...)
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// OK reports whether the batch had no errors.
func (r BatchReport) OK() bool {
	return len(r.Errors) == 0
}

// Ingester writes parsed files into a knowledge store.
type Ingester struct {
	store  *knowledge.Store
	logger *log.Logger
	now    func() time.Time
}

// New creates an ingester over store.
func New(store *knowledge.Store) *Ingester {
	return &Ingester{
		store:  store,
		logger: log.New(io.Discard, "", 0),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for per-file failures.
func (in *Ingester) SetLogger(l *log.Logger) {
	if l != nil {
		in.logger = l
	}
}

func (in *Ingester) timestamp() string {
	return in.now().Format(time.RFC3339)
}
