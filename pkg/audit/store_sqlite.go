package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/helicon-ai/helicon/pkg/capability"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists audit events in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Write appends a batch inside one transaction so a failed write keeps
// the store consistent and the caller can retry the whole batch.
func (s *SQLiteStore) Write(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (
			event_type, ts, tenant_id, user_id, agent_id, session_id,
			action_id, action_name, params_json, metadata_json,
			success, duration_ms, error_text, severity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		params, err := encodeJSON(ev.Params)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		metadata, err := encodeJSON(ev.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			string(ev.Type),
			ev.Timestamp.UTC(),
			ev.TenantID,
			ev.UserID,
			ev.AgentID,
			ev.SessionID,
			ev.ActionID,
			ev.ActionName,
			params,
			metadata,
			ev.Success,
			ev.DurationMs,
			ev.Error,
			string(ev.Severity),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns audit events matching the filter in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT event_type, ts, tenant_id, user_id, agent_id, session_id,
			action_id, action_name, params_json, metadata_json,
			success, duration_ms, error_text, severity
		FROM audit_events
	`
	where, args := buildWhere(filter)
	query += where + " ORDER BY rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev           Event
			eventType    string
			severity     string
			paramsJSON   sql.NullString
			metadataJSON sql.NullString
			ts           sql.NullTime
		)
		if err := rows.Scan(
			&eventType,
			&ts,
			&ev.TenantID,
			&ev.UserID,
			&ev.AgentID,
			&ev.SessionID,
			&ev.ActionID,
			&ev.ActionName,
			&paramsJSON,
			&metadataJSON,
			&ev.Success,
			&ev.DurationMs,
			&ev.Error,
			&severity,
		); err != nil {
			return nil, err
		}
		ev.Type = EventType(eventType)
		ev.Severity = Severity(severity)
		if ts.Valid {
			ev.Timestamp = ts.Time.UTC()
		}
		if paramsJSON.Valid && paramsJSON.String != "" && paramsJSON.String != "null" {
			if err := json.Unmarshal([]byte(paramsJSON.String), &ev.Params); err != nil {
				return nil, fmt.Errorf("decode params: %w", err)
			}
		}
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			var md capability.ExecutionMetadata
			if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
			ev.Metadata = &md
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	query := "SELECT COUNT(*) FROM audit_events"
	where, args := buildWhere(filter)
	query += where

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildWhere(filter Filter) (string, []any) {
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.TenantID != "" {
		addFilter("tenant_id = ?", filter.TenantID)
	}
	if filter.SessionID != "" {
		addFilter("session_id = ?", filter.SessionID)
	}
	if filter.AgentID != "" {
		addFilter("agent_id = ?", filter.AgentID)
	}
	if filter.ActionID != "" {
		addFilter("action_id = ?", filter.ActionID)
	}
	if filter.Type != "" {
		addFilter("event_type = ?", string(filter.Type))
	}
	if filter.Success != nil {
		addFilter("success = ?", *filter.Success)
	}
	if !filter.Since.IsZero() {
		addFilter("ts >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		addFilter("ts <= ?", filter.Until.UTC())
	}
	return where, args
}

func encodeJSON(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode audit payload: %w", err)
	}
	return string(raw), nil
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			ts TIMESTAMP NOT NULL,
			tenant_id TEXT NOT NULL,
			user_id TEXT,
			agent_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			action_id TEXT,
			action_name TEXT,
			params_json TEXT,
			metadata_json TEXT,
			success BOOLEAN NOT NULL DEFAULT 0,
			duration_ms REAL NOT NULL DEFAULT 0,
			error_text TEXT,
			severity TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_events(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_events(action_id);
		CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(event_type);
	`)
	return err
}
