package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon/internal/audit"
	"bluecarbon/pkg/requestcontext"
)

func seededRouter(t *testing.T) chi.Router {
	t.Helper()
	recorder := audit.NewRecorder(audit.NewInMemoryStore())

	ctx := requestcontext.WithTime(context.Background(), time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, recorder.Record(ctx, audit.Entry{
		Actor:        "verifier-1",
		Action:       audit.ActionVerificationSubmitted,
		ResourceType: audit.ResourceVerification,
		ResourceID:   "rec-1",
	}))
	ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, recorder.Record(ctx, audit.Entry{
		Actor:        "reviewer-9",
		Action:       audit.ActionReviewStarted,
		ResourceType: audit.ResourceVerification,
		ResourceID:   "rec-1",
	}))

	h := New(recorder, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func query(t *testing.T, router chi.Router, path string) (*httptest.ResponseRecorder, EntriesResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp EntriesResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec, resp
}

func TestAuditQueryEndpoint(t *testing.T) {
	router := seededRouter(t)

	t.Run("by resource", func(t *testing.T) {
		rec, resp := query(t, router, "/audit?resource_type=verification&resource_id=rec-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, audit.ActionVerificationSubmitted, resp.Entries[0].Action)
	})

	t.Run("by actor", func(t *testing.T) {
		rec, resp := query(t, router, "/audit?actor=reviewer-9")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, audit.ActionReviewStarted, resp.Entries[0].Action)
	})

	t.Run("time range is half-open", func(t *testing.T) {
		rec, resp := query(t, router,
			"/audit?from=2024-03-01T00:00:00Z&to=2024-03-02T10:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("missing filter rejected", func(t *testing.T) {
		rec, _ := query(t, router, "/audit")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("partial resource filter rejected", func(t *testing.T) {
		rec, _ := query(t, router, "/audit?resource_type=verification")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad timestamp rejected", func(t *testing.T) {
		rec, _ := query(t, router, "/audit?from=yesterday&to=2024-03-02T00:00:00Z")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
