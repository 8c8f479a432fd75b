package ingest

import (
	"fmt"
	"strings"
)

// Attachments renders files as "[Document: name]" blocks for inclusion in an
// interview answer. Files that cannot be read are returned as errors.
func Attachments(srcs []Source) (string, []FileError) {
	var (
		blocks []string
		errs   []FileError
	)
	for _, src := range srcs {
		text, err := Text(src)
		if err != nil {
			errs = append(errs, FileError{File: src.Name, Err: err})
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Document: %s]\n%s", src.Name, text))
	}
	return strings.Join(blocks, "\n\n"), errs
}

// WithAttachments appends rendered attachment blocks to an answer.
func WithAttachments(answer, blocks string) string {
	if blocks == "" {
		return answer
	}
	if strings.TrimSpace(answer) == "" {
		return blocks
	}
	return answer + "\n\n" + blocks
}
