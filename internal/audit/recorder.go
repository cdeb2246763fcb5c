package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	dErrors "bluecarbon/pkg/domain-errors"
	"bluecarbon/pkg/requestcontext"
)

// Store persists audit entries. Implementations are append-only; there is no
// update or delete operation to implement.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error)
	ByActor(ctx context.Context, actor string) ([]Entry, error)
	Between(ctx context.Context, from, to time.Time) ([]Entry, error)
}

// Recorder captures structured audit entries. It assigns IDs and timestamps
// and delegates persistence to the store so tests can swap sinks easily.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record validates and appends an entry. The entry's timestamp defaults to
// the request-scoped clock so a transition and its audit entry observe the
// same instant.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.Actor == "" {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires an actor")
	}
	if entry.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires an action")
	}
	if entry.ResourceType == "" || entry.ResourceID == "" {
		return dErrors.New(dErrors.CodeValidation, "audit entry requires a resource")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	return r.store.Append(ctx, entry)
}

// ByResource lists entries for one resource, oldest first.
func (r *Recorder) ByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	return r.store.ByResource(ctx, resourceType, resourceID)
}

// ByActor lists entries recorded by one actor, oldest first.
func (r *Recorder) ByActor(ctx context.Context, actor string) ([]Entry, error) {
	return r.store.ByActor(ctx, actor)
}

// Between lists entries in [from, to), oldest first.
func (r *Recorder) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return r.store.Between(ctx, from, to)
}
