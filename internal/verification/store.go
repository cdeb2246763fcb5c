package verification

import (
	"context"
	"time"

	id "bluecarbon/pkg/domain"
)

// Store persists verification records.
//
// Create enforces the one-open-verification-per-project rule and returns
// sentinel.ErrConflict when a non-terminal record already exists for the
// project. Update is compare-and-swap on the record version: it returns
// sentinel.ErrConflict when the stored version no longer matches
// expectedVersion, and on success bumps the record to expectedVersion+1.
// FindByID returns sentinel.ErrNotFound for unknown IDs.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record, expectedVersion int64) error
	FindByID(ctx context.Context, recordID id.VerificationID) (*Record, error)
	FindByProject(ctx context.Context, projectID id.ProjectID) ([]*Record, error)
	FindByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*Record, error)

	// FindPending returns pending records oldest-first, capped at limit
	// (limit <= 0 means no cap).
	FindPending(ctx context.Context, limit int) ([]*Record, error)

	// FindOverdue returns non-rejected records whose next verification was
	// due on or before asOf, soonest-due-first.
	FindOverdue(ctx context.Context, asOf time.Time) ([]*Record, error)
}
