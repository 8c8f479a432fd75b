package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/sprintfactory/internal/knowledge"
	"github.com/lucasnoah/sprintfactory/internal/metrics"
)

// DefaultComplexity applies when a ticket has none.
const DefaultComplexity = "Medium"

// BacklogItem is one ticket.
type BacklogItem struct {
	TicketID       string `json:"ticket_id" yaml:"ticket_id"`
	Description    string `json:"description" yaml:"description"`
	Complexity     string `json:"complexity" yaml:"complexity"`
	RequiredSkills string `json:"required_skills" yaml:"required_skills"`
}

// ParseBacklog reads a .csv, .json, .yaml or .yml backlog file. JSON and YAML
// accept a bare list, a {"backlog": [...]} wrapper or a single object.
func ParseBacklog(src Source) ([]BacklogItem, error) {
	switch src.Ext() {
	case ".csv":
		return parseCSV(src.Data)
	case ".json":
		var v any
		if err := json.Unmarshal(src.Data, &v); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return itemsFrom(v)
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(src.Data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return itemsFrom(v)
	}
	return nil, fmt.Errorf("unsupported file type %q", src.Ext())
}

func parseCSV(data []byte) ([]BacklogItem, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	_, hasID := col["ticket_id"]
	_, hasDesc := col["description"]
	if !hasID && !hasDesc {
		return nil, fmt.Errorf("parse csv: header needs ticket_id or description, got %v", header)
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var items []BacklogItem
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		items = append(items, normalise(BacklogItem{
			TicketID:       get(rec, "ticket_id"),
			Description:    get(rec, "description"),
			Complexity:     get(rec, "complexity"),
			RequiredSkills: get(rec, "required_skills"),
		}))
	}
	return items, nil
}

func itemsFrom(v any) ([]BacklogItem, error) {
	var raw []any
	switch t := v.(type) {
	case []any:
		raw = t
	case map[string]any:
		if list, ok := t["backlog"]; ok {
			l, ok := list.([]any)
			if !ok {
				return nil, fmt.Errorf("backlog must be a list, got %T", list)
			}
			raw = l
		} else {
			raw = []any{t}
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected backlog document of type %T", v)
	}

	items := make([]BacklogItem, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: expected an object, got %T", i, r)
		}
		items = append(items, normalise(BacklogItem{
			TicketID:       stringify(m["ticket_id"]),
			Description:    stringify(m["description"]),
			Complexity:     stringify(m["complexity"]),
			RequiredSkills: stringify(m["required_skills"]),
		}))
	}
	return items, nil
}

// stringify flattens scalar and list values; lists join with ", ".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ", ")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func normalise(it BacklogItem) BacklogItem {
	if it.Complexity == "" {
		it.Complexity = DefaultComplexity
	}
	return it
}

// Backlog parses every file and stores its tickets. Duplicate ticket ids and
// empty tickets are reported per item; the rest of the file still loads.
func (in *Ingester) Backlog(ctx context.Context, srcs []Source) BatchReport {
	var rep BatchReport
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			rep.Errors = append(rep.Errors, FileError{File: src.Name, Err: err})
			continue
		}
		items, err := ParseBacklog(src)
		if err != nil {
			in.fail(&rep, "backlog", FileError{File: src.Name, Err: err})
			continue
		}
		if len(items) == 0 {
			rep.Warnings = append(rep.Warnings, src.Name+": no backlog items")
		}

		stored := 0
		for i, it := range items {
			if it.TicketID == "" && it.Description == "" {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: item %d is empty, skipped", src.Name, i+1))
				continue
			}
			id, err := in.store.AddBacklogItem(ctx, it.Description, map[string]string{
				knowledge.MetaTicketID:   it.TicketID,
				knowledge.MetaComplexity: it.Complexity,
				knowledge.MetaSkills:     it.RequiredSkills,
				knowledge.MetaUploadDate: in.timestamp(),
				metaSourceFile:           src.Name,
			}, it.TicketID)
			if err != nil {
				fe := FileError{File: src.Name, Item: it.TicketID, Err: err}
				in.logger.Printf("ingest backlog: %v", fe)
				rep.Errors = append(rep.Errors, fe)
				continue
			}
			stored++
			label := it.TicketID
			if label == "" {
				label = id
			}
			rep.Ingested = append(rep.Ingested, Record{File: src.Name, ID: id, Label: label})
		}

		outcome := "ok"
		if stored == 0 && len(items) > 0 {
			outcome = "error"
		}
		metrics.IngestedFiles.WithLabelValues("backlog", outcome).Inc()
	}
	return rep
}
