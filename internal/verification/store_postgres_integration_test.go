//go:build integration

package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon/internal/audit"
	"bluecarbon/internal/platform/config"
	platformredis "bluecarbon/internal/platform/redis"
	id "bluecarbon/pkg/domain"
	"bluecarbon/pkg/platform/sentinel"
	"bluecarbon/pkg/platform/tx"
	"bluecarbon/pkg/testutil/containers"
)

func TestPostgresStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Migrate(t, Schema, audit.Schema)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	truncate := func(t *testing.T) {
		t.Helper()
		_, err := pg.DB.Exec("TRUNCATE verification_records")
		require.NoError(t, err)
	}

	t.Run("create and round-trip the full aggregate", func(t *testing.T) {
		truncate(t)
		rec := storeRecord(t, "55555555-5555-5555-5555-555555555555", base)
		ScheduleNextDue(rec)
		rec.Metadata.Tags = []string{"mangrove", "kenya"}
		require.NoError(t, store.Create(ctx, rec))

		got, err := store.FindByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Measurements, got.Measurements)
		assert.Equal(t, rec.Metadata.Tags, got.Metadata.Tags)
		require.NotNil(t, got.Metadata.NextVerificationDue)
		assert.True(t, rec.Metadata.NextVerificationDue.Equal(*got.Metadata.NextVerificationDue))
	})

	t.Run("partial unique index enforces one open verification", func(t *testing.T) {
		truncate(t)
		first := storeRecord(t, "55555555-5555-5555-5555-555555555555", base)
		require.NoError(t, store.Create(ctx, first))

		second := storeRecord(t, "55555555-5555-5555-5555-555555555555", base.Add(time.Hour))
		assert.ErrorIs(t, store.Create(ctx, second), sentinel.ErrConflict)

		// Rejecting the first frees the slot.
		first.ApplyBeginReview(reviewer(t), base)
		first.ApplyReject(reviewer(t), "bad evidence", base)
		require.NoError(t, store.Update(ctx, first, 1))
		assert.NoError(t, store.Create(ctx, second))
	})

	t.Run("version check rejects stale writers", func(t *testing.T) {
		truncate(t)
		rec := storeRecord(t, "55555555-5555-5555-5555-555555555555", base)
		require.NoError(t, store.Create(ctx, rec))

		stale := rec.Clone()
		rec.ApplyBeginReview(reviewer(t), base)
		require.NoError(t, store.Update(ctx, rec, 1))

		stale.ApplyBeginReview(otherReviewer(t), base)
		assert.ErrorIs(t, store.Update(ctx, stale, 1), sentinel.ErrConflict)
	})

	t.Run("update of missing record reports not found", func(t *testing.T) {
		truncate(t)
		rec := storeRecord(t, "55555555-5555-5555-5555-555555555555", base)
		assert.ErrorIs(t, store.Update(ctx, rec, 1), sentinel.ErrNotFound)
	})

	t.Run("queries filter and order", func(t *testing.T) {
		truncate(t)
		projects := []string{
			"55555555-5555-5555-5555-555555555555",
			"66666666-6666-6666-6666-666666666666",
		}
		for i, p := range projects {
			rec := storeRecord(t, p, base.Add(time.Duration(i)*time.Hour))
			ScheduleNextDue(rec)
			require.NoError(t, store.Create(ctx, rec))
		}

		pending, err := store.FindPending(ctx, 1)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, base, pending[0].CreatedAt.UTC())

		byVerifier, err := store.FindByVerifier(ctx, reviewer(t))
		require.NoError(t, err)
		assert.Len(t, byVerifier, 2)

		overdue, err := store.FindOverdue(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Len(t, overdue, 2)
	})
}

func TestTransactionalTransitionIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Migrate(t, Schema, audit.Schema)
	ctx := context.Background()

	store := NewPostgresStore(pg.DB)
	auditStore := audit.NewPostgresStore(pg.DB)
	recorder := audit.NewRecorder(auditStore)
	runner := tx.NewSQLRunner(pg.DB)

	rec := storeRecord(t, "55555555-5555-5555-5555-555555555555", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Create(ctx, rec))

	t.Run("transition and audit entry commit together", func(t *testing.T) {
		rec.ApplyBeginReview(reviewer(t), time.Now().UTC())
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := recorder.Record(ctx, audit.Entry{
				Actor:        reviewer(t).String(),
				Action:       audit.ActionReviewStarted,
				ResourceType: audit.ResourceVerification,
				ResourceID:   rec.ID.String(),
			}); err != nil {
				return err
			}
			return store.Update(ctx, rec, 1)
		})
		require.NoError(t, err)

		entries, err := auditStore.ByResource(ctx, audit.ResourceVerification, rec.ID.String())
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("failed transition rolls the audit entry back", func(t *testing.T) {
		stale := rec.Clone()
		stale.ApplyReject(otherReviewer(t), "stale", time.Now().UTC())
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := recorder.Record(ctx, audit.Entry{
				Actor:        otherReviewer(t).String(),
				Action:       audit.ActionVerificationRejected,
				ResourceType: audit.ResourceVerification,
				ResourceID:   stale.ID.String(),
			}); err != nil {
				return err
			}
			return store.Update(ctx, stale, 1) // version already moved to 2
		})
		require.ErrorIs(t, err, sentinel.ErrConflict)

		entries, err := auditStore.ByResource(ctx, audit.ResourceVerification, rec.ID.String())
		require.NoError(t, err)
		assert.Len(t, entries, 1, "rolled-back audit entry must not persist")
	})
}

func redisClientFor(url string) (*platformredis.Client, error) {
	return platformredis.New(url, config.RedisConfig{PoolSize: 5, MinIdleConns: 1})
}

func TestRedisLeaseIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	client, err := redisClientFor(rc.Addr)
	require.NoError(t, err)
	lease := NewRedisLease(client)
	ctx := context.Background()
	recordID := id.NewVerificationID()

	ok, err := lease.Acquire(ctx, recordID, reviewer(t), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lease.Acquire(ctx, recordID, otherReviewer(t), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Holder refresh succeeds.
	ok, err = lease.Acquire(ctx, recordID, reviewer(t), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Non-holder release is a no-op, holder release frees the key.
	require.NoError(t, lease.Release(ctx, recordID, otherReviewer(t)))
	ok, err = lease.Acquire(ctx, recordID, otherReviewer(t), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lease.Release(ctx, recordID, reviewer(t)))
	ok, err = lease.Acquire(ctx, recordID, otherReviewer(t), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
