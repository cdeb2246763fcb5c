package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bluecarbon/internal/verification"
	id "bluecarbon/pkg/domain"
	"bluecarbon/pkg/platform/httputil"
	"bluecarbon/pkg/requestcontext"
)

// Service defines the verification operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, req verification.SubmitRequest) (*verification.Record, error)
	BeginReview(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID) (*verification.Record, error)
	Approve(ctx context.Context, req verification.ApproveRequest) (*verification.Record, error)
	Reject(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID, reason string) (*verification.Record, error)
	OverrideMeasurement(ctx context.Context, recordID id.VerificationID, actor string, measurements verification.Measurements) (*verification.Record, error)
	Get(ctx context.Context, recordID id.VerificationID) (*verification.Record, error)
	ListByProject(ctx context.Context, projectID id.ProjectID) ([]*verification.Record, error)
	ListByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*verification.Record, error)
	ListPending(ctx context.Context, limit int) ([]*verification.Record, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*verification.Record, error)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.HandleSubmit)
	r.Get("/verifications/pending", h.HandleListPending)
	r.Get("/verifications/overdue", h.HandleListOverdue)
	r.Get("/verifications/{verificationID}", h.HandleGet)
	r.Post("/verifications/{verificationID}/review", h.HandleBeginReview)
	r.Post("/verifications/{verificationID}/approve", h.HandleApprove)
	r.Post("/verifications/{verificationID}/reject", h.HandleReject)
	r.Put("/verifications/{verificationID}/measurements", h.HandleOverrideMeasurement)
	r.Get("/projects/{projectID}/verifications", h.HandleListByProject)
	r.Get("/verifiers/{verifierID}/verifications", h.HandleListByVerifier)
}

// HandleSubmit handles POST /verifications.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Submit(ctx, req.Domain())
	if err != nil {
		h.logger.WarnContext(ctx, "verification submission rejected",
			"request_id", requestID,
			"project_id", req.ProjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(rec))
}

// HandleGet handles GET /verifications/{verificationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.Get(ctx, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleBeginReview handles POST /verifications/{verificationID}/review.
func (h *Handler) HandleBeginReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	recordID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.BeginReview(ctx, recordID, req.parsedReviewerID)
	if err != nil {
		h.logger.WarnContext(ctx, "begin review failed",
			"request_id", requestID,
			"verification_id", recordID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleApprove handles POST /verifications/{verificationID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	recordID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Approve(ctx, verification.ApproveRequest{
		RecordID:        recordID,
		ReviewerID:      req.parsedReviewerID,
		ComplianceScore: req.ComplianceScore,
		CarbonOverride:  req.CarbonOverride,
		Comments:        req.Comments,
		Recommendations: req.Recommendations,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "approval failed",
			"request_id", requestID,
			"verification_id", recordID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleReject handles POST /verifications/{verificationID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	recordID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Reject(ctx, recordID, req.parsedReviewerID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "rejection failed",
			"request_id", requestID,
			"verification_id", recordID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleOverrideMeasurement handles PUT /verifications/{verificationID}/measurements.
func (h *Handler) HandleOverrideMeasurement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	recordID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.OverrideMeasurement(ctx, recordID, req.Actor, req.Measurements)
	if err != nil {
		h.logger.WarnContext(ctx, "measurement override failed",
			"request_id", requestID,
			"verification_id", recordID.String(),
			"actor", req.Actor,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

// HandleListByProject handles GET /projects/{projectID}/verifications.
func (h *Handler) HandleListByProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := id.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.service.ListByProject(ctx, projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(recs))
}

// HandleListByVerifier handles GET /verifiers/{verifierID}/verifications.
func (h *Handler) HandleListByVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verifierID, err := id.ParseVerifierID(chi.URLParam(r, "verifierID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.service.ListByVerifier(ctx, verifierID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(recs))
}

// HandleListPending handles GET /verifications/pending.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, invalidLimit())
			return
		}
		limit = parsed
	}
	recs, err := h.service.ListPending(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(recs))
}

// HandleListOverdue handles GET /verifications/overdue.
func (h *Handler) HandleListOverdue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, err := h.service.ListOverdue(ctx, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(recs))
}
