package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/knowledge"
)

var _ knowledge.Backend = (*DB)(nil)

// Add inserts documents in one transaction.
func (d *DB) Add(ctx context.Context, docs ...knowledge.Document) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		created := doc.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (kind, doc_id, body, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
			string(doc.Kind), doc.ID, doc.Text, string(meta), created.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

// Has reports whether a document id exists in a collection.
func (d *DB) Has(ctx context.Context, kind knowledge.Kind, id string) (bool, error) {
	var count int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE kind = ? AND doc_id = ?`, string(kind), id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("lookup document: %w", err)
	}
	return count > 0, nil
}

// List returns a collection in insertion order.
func (d *DB) List(ctx context.Context, kind knowledge.Kind) ([]knowledge.Document, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT doc_id, body, metadata, created_at FROM documents WHERE kind = ? ORDER BY seq`, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []knowledge.Document
	for rows.Next() {
		var doc knowledge.Document
		var meta, created string
		if err := rows.Scan(&doc.ID, &doc.Text, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Kind = kind
		if err := json.Unmarshal([]byte(meta), &doc.Meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			doc.CreatedAt = t
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in a collection.
func (d *DB) Count(ctx context.Context, kind knowledge.Kind) (int, error) {
	var count int
	err := d.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE kind = ?`, string(kind),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Reset drops and recreates the documents table. The event log is kept.
func (d *DB) Reset(ctx context.Context) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS documents"); err != nil {
		return fmt.Errorf("drop documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, documentsTable); err != nil {
		return fmt.Errorf("recreate documents: %w", err)
	}
	return tx.Commit()
}
