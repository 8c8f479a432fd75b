package db

import (
	"context"
	"database/sql"
	"fmt"
)

// PlanningEvent represents a row in the planning_events table.
type PlanningEvent struct {
	ID        int    `json:"id"`
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Stage     string `json:"stage,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// LogEvent inserts a planning event.
func (d *DB) LogEvent(ctx context.Context, sessionID, event, stage, detail string) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO planning_events (session_id, event, stage, detail) VALUES (?, ?, ?, ?)`,
		sessionID, event, stage, detail,
	)
	if err != nil {
		return fmt.Errorf("log planning event: %w", err)
	}
	return nil
}

// Events returns the most recent events, newest first. An empty sessionID
// returns events for every session; limit <= 0 means no limit.
func (d *DB) Events(ctx context.Context, sessionID string, limit int) ([]PlanningEvent, error) {
	query := `SELECT id, session_id, event, stage, detail, timestamp FROM planning_events`
	var args []interface{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get planning events: %w", err)
	}
	defer rows.Close()

	var events []PlanningEvent
	for rows.Next() {
		var e PlanningEvent
		var stage, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &stage, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan planning event: %w", err)
		}
		e.Stage = stage.String
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
