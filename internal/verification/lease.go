package verification

import (
	"context"
	"sync"
	"time"

	id "bluecarbon/pkg/domain"
)

// ReviewerLease is a short-lived advisory claim on a record taken before the
// review transition is attempted. It narrows the race window when several
// reviewers pick from the same queue; the store's version check remains the
// authority, so a lost lease never corrupts state.
//
// Acquire reports false when another reviewer holds the lease. Acquiring a
// lease you already hold refreshes its TTL and reports true.
type ReviewerLease interface {
	Acquire(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID) error
}

type leaseEntry struct {
	holder    id.VerifierID
	expiresAt time.Time
}

// InMemoryLease is the single-process ReviewerLease used by tests and local
// runs.
type InMemoryLease struct {
	mu     sync.Mutex
	leases map[id.VerificationID]leaseEntry
	now    func() time.Time
}

func NewInMemoryLease() *InMemoryLease {
	return &InMemoryLease{
		leases: make(map[id.VerificationID]leaseEntry),
		now:    time.Now,
	}
}

func (l *InMemoryLease) Acquire(_ context.Context, recordID id.VerificationID, reviewerID id.VerifierID, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.leases[recordID]
	if ok && entry.expiresAt.After(now) && entry.holder != reviewerID {
		return false, nil
	}
	l.leases[recordID] = leaseEntry{holder: reviewerID, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *InMemoryLease) Release(_ context.Context, recordID id.VerificationID, reviewerID id.VerifierID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.leases[recordID]; ok && entry.holder == reviewerID {
		delete(l.leases, recordID)
	}
	return nil
}
