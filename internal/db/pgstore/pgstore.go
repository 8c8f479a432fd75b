// Package pgstore is the Postgres backend for the context store and the
// planning event log.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucasnoah/sprintfactory/internal/db"
	"github.com/lucasnoah/sprintfactory/internal/knowledge"
)

var _ knowledge.Backend = (*Store)(nil)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const documentsTable = `
CREATE TABLE IF NOT EXISTS documents (
    seq         BIGSERIAL PRIMARY KEY,
    kind        TEXT NOT NULL CHECK (kind IN ('resumes','backlog','project_context')),
    doc_id      TEXT NOT NULL,
    body        TEXT NOT NULL,
    metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (kind, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents (kind, seq);
`

const schema = documentsTable + `
CREATE TABLE IF NOT EXISTS planning_events (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL,
    event       TEXT NOT NULL,
    stage       TEXT,
    detail      TEXT,
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_planning_session ON planning_events (session_id, id DESC);
`

// Store is a pgx connection pool implementing knowledge.Backend.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Add inserts documents in one transaction.
func (s *Store) Add(ctx context.Context, docs ...knowledge.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		created := doc.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (kind, doc_id, body, metadata, created_at) VALUES ($1, $2, $3, $4, $5)`,
			string(doc.Kind), doc.ID, doc.Text, meta, created,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("insert document %s: %w", doc.ID, knowledge.ErrDuplicateID)
			}
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// Has reports whether a document id exists in a collection.
func (s *Store) Has(ctx context.Context, kind knowledge.Kind, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE kind = $1 AND doc_id = $2)`, string(kind), id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup document: %w", err)
	}
	return exists, nil
}

// List returns a collection in insertion order.
func (s *Store) List(ctx context.Context, kind knowledge.Kind) ([]knowledge.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc_id, body, metadata, created_at FROM documents WHERE kind = $1 ORDER BY seq`, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []knowledge.Document
	for rows.Next() {
		var doc knowledge.Document
		var meta []byte
		if err := rows.Scan(&doc.ID, &doc.Text, &meta, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Kind = kind
		if err := json.Unmarshal(meta, &doc.Meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, kind knowledge.Kind) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE kind = $1`, string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Reset drops and recreates the documents table. The event log is kept.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS documents`); err != nil {
		return fmt.Errorf("drop documents: %w", err)
	}
	if _, err := tx.Exec(ctx, documentsTable); err != nil {
		return fmt.Errorf("recreate documents: %w", err)
	}
	return tx.Commit(ctx)
}

// ResetAll drops every table and re-applies the schema.
func (s *Store) ResetAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS planning_events, documents`); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return s.Migrate(ctx)
}

// LogEvent inserts a planning event.
func (s *Store) LogEvent(ctx context.Context, sessionID, event, stage, detail string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO planning_events (session_id, event, stage, detail) VALUES ($1, $2, $3, $4)`,
		sessionID, event, stage, detail,
	)
	if err != nil {
		return fmt.Errorf("log planning event: %w", err)
	}
	return nil
}

// Events returns the most recent events, newest first. An empty sessionID
// returns events for every session; limit <= 0 means no limit.
func (s *Store) Events(ctx context.Context, sessionID string, limit int) ([]db.PlanningEvent, error) {
	query := `SELECT id, session_id, event, COALESCE(stage, ''), COALESCE(detail, ''), timestamp FROM planning_events`
	var args []interface{}
	if sessionID != "" {
		args = append(args, sessionID)
		query += fmt.Sprintf(` WHERE session_id = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get planning events: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (db.PlanningEvent, error) {
		var e db.PlanningEvent
		var id int64
		var ts time.Time
		if err := row.Scan(&id, &e.SessionID, &e.Event, &e.Stage, &e.Detail, &ts); err != nil {
			return e, fmt.Errorf("scan planning event: %w", err)
		}
		e.ID = int(id)
		e.Timestamp = ts.UTC().Format("2006-01-02 15:04:05")
		return e, nil
	})
}
