package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	txcontext "bluecarbon/pkg/platform/tx"
)

// PostgresStore persists the trail in the audit_entries table. Writes honor
// a transaction from context, so a status transition and its audit entry
// commit together.
//
// The table carries no UPDATE or DELETE path; immutability is also enforced
// by a database rule in the migration.
// Schema creates the audit_entries table. The rule rewrites UPDATE and
// DELETE to no-ops so the trail stays append-only even against direct SQL.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	request_id TEXT,
	details JSONB
);

CREATE INDEX IF NOT EXISTS audit_entries_resource
	ON audit_entries (resource_type, resource_id, timestamp);

CREATE INDEX IF NOT EXISTS audit_entries_actor
	ON audit_entries (actor, timestamp);

CREATE OR REPLACE RULE audit_entries_no_update AS
	ON UPDATE TO audit_entries DO INSTEAD NOTHING;

CREATE OR REPLACE RULE audit_entries_no_delete AS
	ON DELETE TO audit_entries DO INSTEAD NOTHING;
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (
			id, actor, action, resource_type, resource_id,
			timestamp, request_id, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.Actor,
		string(entry.Action),
		entry.ResourceType,
		entry.ResourceID,
		entry.Timestamp,
		entry.RequestID,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	query := selectEntries + `
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by resource: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ByActor(ctx context.Context, actor string) ([]Entry, error) {
	query := selectEntries + `
		WHERE actor = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actor)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	query := selectEntries + `
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by time range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

const selectEntries = `
	SELECT id, actor, action, resource_type, resource_id,
		   timestamp, request_id, details
	FROM audit_entries
`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			action  string
			details []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Timestamp,
			&entry.RequestID,
			&details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
