package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/metrics"
)

// UnknownCandidate is the name used when no line looks like a name.
const UnknownCandidate = "Unknown"

// ErrNoText is returned for files that yield no readable text.
var ErrNoText = errors.New("no text extracted")

// CandidateProfile is a parsed résumé.
type CandidateProfile struct {
	Name       string `json:"name"`
	ResumeText string `json:"resume_text"`
	Filename   string `json:"filename"`
}

// CandidateName returns the first of the first five lines that is non-empty
// and at most four words long.
func CandidateName(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" && len(strings.Fields(l)) <= 4 {
			return l
		}
	}
	return UnknownCandidate
}

// ParseResume extracts the profile from a .pdf, .txt or .md source.
func ParseResume(src Source) (CandidateProfile, error) {
	text, err := Text(src)
	if err != nil {
		return CandidateProfile{}, err
	}
	return CandidateProfile{Name: CandidateName(text), ResumeText: text, Filename: src.Name}, nil
}

// Text returns the plain text of a .pdf, .txt or .md source.
func Text(src Source) (string, error) {
	var text string
	switch src.Ext() {
	case ".pdf":
		t, err := pdfText(src.Data)
		if err != nil {
			return "", err
		}
		text = t
	case ".txt", ".md":
		if !utf8.Valid(src.Data) {
			return "", fmt.Errorf("%s is not valid UTF-8", src.Name)
		}
		text = string(src.Data)
	default:
		return "", fmt.Errorf("unsupported file type %q", src.Ext())
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	return string(b), nil
}

// Resumes parses and stores every résumé. Candidates whose name matches one
// already stored, or another file in the batch, are stored anyway and
// reported as warnings.
func (in *Ingester) Resumes(ctx context.Context, srcs []Source) BatchReport {
	var rep BatchReport

	seen := map[string]string{}
	if existing, err := in.store.Candidates(ctx); err == nil {
		for _, c := range existing {
			seen[strings.ToLower(c.Name)] = c.Filename
		}
	}

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			rep.Errors = append(rep.Errors, FileError{File: src.Name, Err: err})
			continue
		}
		profile, err := ParseResume(src)
		if err != nil {
			in.fail(&rep, "resume", FileError{File: src.Name, Err: err})
			continue
		}

		id, err := in.store.AddProfile(ctx, profile.ResumeText, map[string]string{
			knowledge.MetaName:       profile.Name,
			knowledge.MetaFilename:   profile.Filename,
			knowledge.MetaUploadDate: in.timestamp(),
		})
		if err != nil {
			in.fail(&rep, "resume", FileError{File: src.Name, Err: err})
			continue
		}

		key := strings.ToLower(profile.Name)
		if prev, dup := seen[key]; dup && profile.Name != UnknownCandidate {
			rep.Warnings = append(rep.Warnings,
				fmt.Sprintf("%s: candidate name %q already present (from %s)", src.Name, profile.Name, prev))
		}
		seen[key] = src.Name

		rep.Ingested = append(rep.Ingested, Record{File: src.Name, ID: id, Label: profile.Name})
		metrics.IngestedFiles.WithLabelValues("resume", "ok").Inc()
	}
	return rep
}

func (in *Ingester) fail(rep *BatchReport, kind string, fe FileError) {
	in.logger.Printf("ingest %s: %v", kind, fe)
	rep.Errors = append(rep.Errors, fe)
	metrics.IngestedFiles.WithLabelValues(kind, "error").Inc()
}
