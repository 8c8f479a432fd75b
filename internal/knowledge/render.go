package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Section headers of the combined context.
const (
	ResumeHeader  = "=== RESUME DATA ==="
	BacklogHeader = "=== BACKLOG ITEMS ==="
	ContextHeader = "=== PROJECT CONTEXT (INTERVIEW) ==="
)

// CombinedContext renders all three collections into the single text block
// fed to the planning pipeline. A non-empty query limits each collection to
// its top-k ranked documents; an empty query includes everything. Empty
// collections contribute no section.
func (s *Store) CombinedContext(ctx context.Context, query string) (string, error) {
	var parts []string

	resumes, err := s.Query(ctx, Resumes, query, 0)
	if err != nil {
		return "", err
	}
	if len(resumes) > 0 {
		parts = append(parts, ResumeHeader)
		for _, d := range resumes {
			parts = append(parts, fmt.Sprintf("\nCandidate: %s\n%s\n", nameOf(d), d.Text))
		}
	}

	backlog, err := s.Query(ctx, Backlog, query, 0)
	if err != nil {
		return "", err
	}
	if len(backlog) > 0 {
		parts = append(parts, "\n"+BacklogHeader)
		for _, d := range backlog {
			parts = append(parts, fmt.Sprintf("\nTicket: %s\n%s\n", ticketLine(d), d.Text))
		}
	}

	answers, err := s.Query(ctx, ProjectContext, query, 0)
	if err != nil {
		return "", err
	}
	if len(answers) > 0 {
		parts = append(parts, "\n"+ContextHeader)
		for _, d := range answers {
			parts = append(parts, fmt.Sprintf("\n%s\n", d.Text))
		}
	}

	return strings.Join(parts, "\n"), nil
}

func nameOf(d Document) string {
	if n := d.Meta[MetaName]; n != "" {
		return n
	}
	return "Unknown"
}

// ticketLine renders "ID (Complexity: X, Skills: Y)", omitting empty attributes.
func ticketLine(d Document) string {
	id := d.Meta[MetaTicketID]
	if id == "" {
		id = "Unknown"
	}
	var attrs []string
	if c := d.Meta[MetaComplexity]; c != "" {
		attrs = append(attrs, "Complexity: "+c)
	}
	if sk := d.Meta[MetaSkills]; sk != "" {
		attrs = append(attrs, "Skills: "+sk)
	}
	if len(attrs) == 0 {
		return id
	}
	return id + " (" + strings.Join(attrs, ", ") + ")"
}
