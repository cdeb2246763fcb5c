package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluecarbon/internal/audit"
	"bluecarbon/internal/issuance"
	"bluecarbon/internal/verification"
	"bluecarbon/pkg/platform/tx"
)

const (
	verifierID = "11111111-1111-1111-1111-111111111111"
	projectID  = "22222222-2222-2222-2222-222222222222"
	reviewerID = "33333333-3333-3333-3333-333333333333"
)

type recordingPublisher struct {
	requests []issuance.Request
}

func (p *recordingPublisher) Publish(_ context.Context, req issuance.Request) error {
	p.requests = append(p.requests, req)
	return nil
}

func newRouter(t *testing.T) (chi.Router, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	svc := verification.NewService(
		verification.NewInMemoryStore(),
		audit.NewRecorder(audit.NewInMemoryStore()),
		tx.NewPassthroughRunner(),
		verification.WithIssuance(publisher),
	)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r, publisher
}

func submitBody() map[string]any {
	return map[string]any{
		"verifier_id":       verifierID,
		"project_id":        projectID,
		"verification_type": "periodic",
		"methodology": map[string]any{
			"name":      "VM0033",
			"version":   "2.1",
			"standards": []string{"VCS"},
		},
		"measurements": map[string]any{
			"carbon_stored_t":         1500.5,
			"sequestration_rate_t_yr": 120.3,
			"measurement_date":        "2024-01-15T00:00:00Z",
			"method":                  "hybrid",
			"confidence":              "high",
			"uncertainty_pct":         5.2,
		},
		"field_data": []map[string]any{{
			"plot_id":             "plot-1",
			"lat":                 -4.05,
			"lon":                 39.66,
			"biomass_t":           180.5,
			"soil_carbon_t":       60.2,
			"vegetation_height_m": 11.5,
			"canopy_cover":        0.8,
			"species_count":       4,
			"collected_at":        "2024-01-15T00:00:00Z",
			"collected_by":        "surveyor-7",
		}},
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) RecordResponse {
	t.Helper()
	var resp RecordResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSubmitEndpoint(t *testing.T) {
	t.Run("valid submission returns 201 with score", func(t *testing.T) {
		router, _ := newRouter(t)
		rec := doJSON(t, router, http.MethodPost, "/verifications", submitBody())
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decodeRecord(t, rec)
		assert.Equal(t, verification.StatusPending, resp.Status)
		assert.Equal(t, 90, resp.QualityScore)
		require.NotNil(t, resp.Metadata.NextVerificationDue)
	})

	t.Run("malformed JSON returns 400", func(t *testing.T) {
		router, _ := newRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/verifications", bytes.NewReader([]byte("{")))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad project id returns 400", func(t *testing.T) {
		router, _ := newRouter(t)
		body := submitBody()
		body["project_id"] = "not-a-uuid"
		rec := doJSON(t, router, http.MethodPost, "/verifications", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing evidence returns 422", func(t *testing.T) {
		router, _ := newRouter(t)
		body := submitBody()
		delete(body, "field_data")
		rec := doJSON(t, router, http.MethodPost, "/verifications", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestReviewLifecycleEndpoints(t *testing.T) {
	router, publisher := newRouter(t)

	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/verifications", submitBody()))
	recordPath := "/verifications/" + created.ID.String()

	rec := doJSON(t, router, http.MethodPost, recordPath+"/review", map[string]any{"reviewer_id": reviewerID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, verification.StatusUnderReview, decodeRecord(t, rec).Status)

	rec = doJSON(t, router, http.MethodPost, recordPath+"/approve", map[string]any{
		"reviewer_id":       reviewerID,
		"compliance_score":  91.0,
		"carbon_override_t": 1450.0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeRecord(t, rec)
	assert.Equal(t, verification.StatusApproved, approved.Status)
	assert.Equal(t, 1450.0, approved.Measurements.CarbonStoredT)

	require.Len(t, publisher.requests, 1)
	assert.Equal(t, 1450.0, publisher.requests[0].AmountTCO2)

	// Terminal record refuses further transitions.
	rec = doJSON(t, router, http.MethodPost, recordPath+"/reject", map[string]any{
		"reviewer_id": reviewerID,
		"reason":      "too late",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRejectEndpoint(t *testing.T) {
	router, _ := newRouter(t)
	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/verifications", submitBody()))
	recordPath := "/verifications/" + created.ID.String()

	doJSON(t, router, http.MethodPost, recordPath+"/review", map[string]any{"reviewer_id": reviewerID})

	t.Run("empty reason returns 422", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, recordPath+"/reject", map[string]any{
			"reviewer_id": reviewerID,
			"reason":      "  ",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("rejection lands in review comments", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, recordPath+"/reject", map[string]any{
			"reviewer_id": reviewerID,
			"reason":      "plot data inconsistent with imagery",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeRecord(t, rec)
		assert.Equal(t, verification.StatusRejected, resp.Status)
		require.NotEmpty(t, resp.Review.Comments)
		assert.Contains(t, resp.Review.Comments[0], "plot data inconsistent")
	})
}

func TestApproveFromPendingConflicts(t *testing.T) {
	router, _ := newRouter(t)
	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/verifications", submitBody()))

	rec := doJSON(t, router, http.MethodPost, "/verifications/"+created.ID.String()+"/approve", map[string]any{
		"reviewer_id":      reviewerID,
		"compliance_score": 80.0,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAndListEndpoints(t *testing.T) {
	router, _ := newRouter(t)
	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/verifications", submitBody()))

	t.Run("get by id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/verifications/"+created.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.ID, decodeRecord(t, rec).ID)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/verifications/99999999-9999-9999-9999-999999999999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list by project", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/projects/"+projectID+"/verifications", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("pending queue", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/verifications/pending?limit=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("bad limit returns 422", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/verifications/pending?limit=abc", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestOverrideMeasurementEndpoint(t *testing.T) {
	router, _ := newRouter(t)
	created := decodeRecord(t, doJSON(t, router, http.MethodPost, "/verifications", submitBody()))

	rec := doJSON(t, router, http.MethodPut, "/verifications/"+created.ID.String()+"/measurements", map[string]any{
		"actor": "model-recalibration",
		"measurements": map[string]any{
			"carbon_stored_t":         1620.0,
			"sequestration_rate_t_yr": 118.0,
			"measurement_date":        "2024-01-15T00:00:00Z",
			"method":                  "model",
			"confidence":              "medium",
			"uncertainty_pct":         9.5,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeRecord(t, rec)
	assert.Equal(t, 1620.0, resp.Measurements.CarbonStoredT)
	assert.Equal(t, verification.MethodModel, resp.Measurements.Method)
}
