package verification

import (
	"context"
	"sort"
	"sync"
	"time"

	id "bluecarbon/pkg/domain"
	"bluecarbon/pkg/platform/sentinel"
)

// InMemoryStore is the map-backed Store used by tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.VerificationID]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.VerificationID]*Record)}
}

func (s *InMemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.records {
		if existing.ProjectID == rec.ProjectID && !existing.Status.Terminal() {
			return sentinel.ErrConflict
		}
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	rec.Version = expectedVersion + 1
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.VerificationID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) FindByProject(_ context.Context, projectID id.ProjectID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.ProjectID == projectID {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) FindByVerifier(_ context.Context, verifierID id.VerifierID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.VerifierID == verifierID {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *InMemoryStore) FindPending(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) FindOverdue(_ context.Context, asOf time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.records {
		due := rec.Metadata.NextVerificationDue
		if due == nil || rec.Status == StatusRejected {
			continue
		}
		if !due.After(asOf) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.NextVerificationDue.Before(*out[j].Metadata.NextVerificationDue)
	})
	return out, nil
}

func sortByCreated(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
