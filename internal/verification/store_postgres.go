package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	id "bluecarbon/pkg/domain"
	"bluecarbon/pkg/platform/sentinel"
	txcontext "bluecarbon/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// Schema creates the verification_records table. The partial unique index
// is what enforces one open verification per project under concurrency.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_records (
	id UUID PRIMARY KEY,
	project_id UUID NOT NULL,
	verifier_id UUID NOT NULL,
	status TEXT NOT NULL,
	next_verification_due TIMESTAMPTZ,
	record_version BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	doc JSONB NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS verification_records_open_project
	ON verification_records (project_id)
	WHERE status NOT IN ('approved', 'rejected');

CREATE INDEX IF NOT EXISTS verification_records_status
	ON verification_records (status, created_at);

CREATE INDEX IF NOT EXISTS verification_records_due
	ON verification_records (next_verification_due)
	WHERE next_verification_due IS NOT NULL;
`

// PostgresStore persists verification records in the verification_records
// table: the full aggregate as a JSONB document, with the columns queries
// filter and order by lifted out alongside it.
//
// A partial unique index on project_id over non-terminal statuses enforces
// the one-open-verification-per-project rule at the database, so concurrent
// submissions cannot both land. Writes honor a transaction from context so a
// transition and its audit entry commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal verification record: %w", err)
	}

	query := `
		INSERT INTO verification_records (
			id, project_id, verifier_id, status,
			next_verification_due, record_version, created_at, updated_at, doc
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.runner(ctx).ExecContext(ctx, query,
		rec.ID.String(),
		rec.ProjectID.String(),
		rec.VerifierID.String(),
		string(rec.Status),
		rec.Metadata.NextVerificationDue,
		rec.Version,
		rec.CreatedAt,
		rec.UpdatedAt,
		doc,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	doc, err := json.Marshal(rec)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("marshal verification record: %w", err)
	}

	query := `
		UPDATE verification_records
		SET status = $1,
		    next_verification_due = $2,
		    record_version = $3,
		    updated_at = $4,
		    doc = $5
		WHERE id = $6 AND record_version = $7
	`
	res, err := s.runner(ctx).ExecContext(ctx, query,
		string(rec.Status),
		rec.Metadata.NextVerificationDue,
		rec.Version,
		rec.UpdatedAt,
		doc,
		rec.ID.String(),
		expectedVersion,
	)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("update verification record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("update verification record: %w", err)
	}
	if affected == 0 {
		rec.Version = expectedVersion
		// Either the row is gone or the version moved underneath us.
		var exists bool
		checkErr := s.runner(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_records WHERE id = $1)`,
			rec.ID.String(),
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("update verification record: %w", checkErr)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.VerificationID) (*Record, error) {
	var doc []byte
	err := s.runner(ctx).QueryRowContext(ctx,
		`SELECT doc FROM verification_records WHERE id = $1`,
		recordID.String(),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query verification record: %w", err)
	}
	return decodeRecord(doc)
}

func (s *PostgresStore) FindByProject(ctx context.Context, projectID id.ProjectID) ([]*Record, error) {
	return s.selectRecords(ctx,
		`SELECT doc FROM verification_records WHERE project_id = $1 ORDER BY created_at ASC`,
		projectID.String(),
	)
}

func (s *PostgresStore) FindByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*Record, error) {
	return s.selectRecords(ctx,
		`SELECT doc FROM verification_records WHERE verifier_id = $1 ORDER BY created_at ASC`,
		verifierID.String(),
	)
}

func (s *PostgresStore) FindPending(ctx context.Context, limit int) ([]*Record, error) {
	query := `SELECT doc FROM verification_records WHERE status = $1 ORDER BY created_at ASC`
	args := []any{string(StatusPending)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.selectRecords(ctx, query, args...)
}

func (s *PostgresStore) FindOverdue(ctx context.Context, asOf time.Time) ([]*Record, error) {
	return s.selectRecords(ctx, `
		SELECT doc FROM verification_records
		WHERE next_verification_due IS NOT NULL
		  AND next_verification_due <= $1
		  AND status <> $2
		ORDER BY next_verification_due ASC
	`, asOf, string(StatusRejected))
}

func (s *PostgresStore) selectRecords(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		rec, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

func decodeRecord(doc []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode verification record: %w", err)
	}
	return &rec, nil
}
