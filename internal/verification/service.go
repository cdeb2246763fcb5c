package verification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bluecarbon/internal/audit"
	"bluecarbon/internal/issuance"
	"bluecarbon/internal/measurement"
	"bluecarbon/internal/verification/metrics"
	id "bluecarbon/pkg/domain"
	dErrors "bluecarbon/pkg/domain-errors"
	"bluecarbon/pkg/platform/sentinel"
	strutil "bluecarbon/pkg/platform/strings"
	"bluecarbon/pkg/platform/tx"
	"bluecarbon/pkg/requestcontext"
)

const reviewLeaseTTL = 15 * time.Minute

// AuditRecorder captures audit entries alongside state transitions.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Service orchestrates the verification lifecycle: submission, review
// transitions, and the issuance trigger on approval. Every transition is
// written atomically with its audit entry through the tx runner.
type Service struct {
	store    Store
	recorder AuditRecorder
	runner   tx.Runner
	lease    ReviewerLease
	issuer   issuance.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLease(lease ReviewerLease) Option {
	return func(s *Service) {
		s.lease = lease
	}
}

func WithIssuance(publisher issuance.Publisher) Option {
	return func(s *Service) {
		s.issuer = publisher
	}
}

// NewService constructs a Service.
func NewService(store Store, recorder AuditRecorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		runner:   runner,
		issuer:   issuance.NopPublisher{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("bluecarbon/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRequest carries a new verification submission. FieldData and
// SatelliteData arrive raw and are normalized before persistence; at least
// one of the two must be present.
type SubmitRequest struct {
	VerifierID    id.VerifierID
	ProjectID     id.ProjectID
	Type          Type
	Methodology   Methodology
	Measurements  Measurements
	Documents     []Document
	FieldData     []measurement.FieldPlot
	SatelliteData []measurement.SatelliteObservation
	QA            QualityAssurance
	Tags          []string
	Notes         string
}

// Submit validates and normalizes a submission, creates the pending record,
// and audits it. For periodic verifications the next due date is scheduled
// here, one year after the measurement date.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Submit",
		trace.WithAttributes(attribute.String("project_id", req.ProjectID.String())))
	defer span.End()
	start := time.Now()

	if len(req.FieldData) == 0 && len(req.SatelliteData) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "submission requires field data or satellite data")
	}

	fieldData := make([]measurement.FieldPlot, 0, len(req.FieldData))
	for _, plot := range req.FieldData {
		normalized, err := measurement.NormalizeFieldPlot(plot)
		if err != nil {
			return nil, err
		}
		fieldData = append(fieldData, normalized)
	}
	satellite := make([]measurement.SatelliteObservation, 0, len(req.SatelliteData))
	for _, obs := range req.SatelliteData {
		normalized, err := measurement.NormalizeSatellite(obs)
		if err != nil {
			return nil, err
		}
		satellite = append(satellite, normalized)
	}

	now := requestcontext.Now(ctx)
	rec, err := NewRecord(id.NewVerificationID(), req.VerifierID, req.ProjectID, req.Type, req.Methodology, req.Measurements, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	rec.Documents = req.Documents
	rec.FieldData = fieldData
	rec.SatelliteData = satellite
	rec.QA = req.QA
	rec.Metadata.Tags = strutil.DedupeTags(req.Tags)
	if err := rec.SetNotes(req.Notes); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	ScheduleNextDue(rec)

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.recorder.Record(ctx, audit.Entry{
			Actor:        req.VerifierID.String(),
			Action:       audit.ActionVerificationSubmitted,
			ResourceType: audit.ResourceVerification,
			ResourceID:   rec.ID.String(),
			Details: map[string]string{
				"project_id":        rec.ProjectID.String(),
				"verification_type": string(rec.Type),
				"carbon_stored_t":   formatFloat(rec.Measurements.CarbonStoredT),
			},
		}); err != nil {
			return err
		}
		return s.store.Create(ctx, rec)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "project %s already has an open verification", req.ProjectID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification record")
	}

	s.logger.InfoContext(ctx, "verification submitted",
		"verification_id", rec.ID.String(),
		"project_id", rec.ProjectID.String(),
		"type", string(rec.Type))
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
		s.metrics.ObserveSubmit(start)
	}
	return rec, nil
}

// BeginReview moves a pending record to under_review and assigns the
// reviewer. Re-entry by the assigned reviewer is idempotent; any other
// reviewer gets a conflict.
func (s *Service) BeginReview(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.BeginReview",
		trace.WithAttributes(attribute.String("verification_id", recordID.String())))
	defer span.End()
	start := time.Now()

	rec, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}

	apply, err := rec.CanBeginReview(reviewerID)
	if err != nil {
		return nil, err
	}
	if !apply {
		return rec, nil
	}

	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx, recordID, reviewerID, reviewLeaseTTL)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire review lease")
		}
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeConflict, "verification %s is being claimed by another reviewer", recordID)
		}
	}

	expected := rec.Version
	rec.ApplyBeginReview(reviewerID, requestcontext.Now(ctx))

	err = s.transition(ctx, rec, expected, audit.Entry{
		Actor:        reviewerID.String(),
		Action:       audit.ActionReviewStarted,
		ResourceType: audit.ResourceVerification,
		ResourceID:   rec.ID.String(),
		Details: map[string]string{
			"project_id": rec.ProjectID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review started",
		"verification_id", rec.ID.String(),
		"reviewer_id", reviewerID.String())
	if s.metrics != nil {
		s.metrics.ObserveReview(start)
	}
	return rec, nil
}

// ApproveRequest carries approval details. ComplianceScore must be present
// either here or already on the record. CarbonOverride, when set, replaces
// the stored carbon figure for issuance; the computed value is preserved in
// the review comments.
type ApproveRequest struct {
	RecordID        id.VerificationID
	ReviewerID      id.VerifierID
	ComplianceScore *float64
	CarbonOverride  *float64
	Comments        []string
	Recommendations []string
}

// Approve moves an under_review record to approved and publishes the
// issuance trigger. The trigger is published after the transition commits;
// a publish failure is logged and audited for replay, never rolled back.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Approve",
		trace.WithAttributes(attribute.String("verification_id", req.RecordID.String())))
	defer span.End()
	start := time.Now()

	rec, err := s.load(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}

	if req.ComplianceScore != nil {
		if *req.ComplianceScore < 0 || *req.ComplianceScore > 100 {
			return nil, dErrors.New(dErrors.CodeValidation, "compliance score must be between 0 and 100")
		}
		score := *req.ComplianceScore
		rec.QA.ComplianceScore = &score
	}
	if err := rec.CanApprove(req.ReviewerID); err != nil {
		return nil, err
	}
	if req.CarbonOverride != nil && *req.CarbonOverride <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "carbon override must be positive")
	}

	expected := rec.Version
	original := rec.Measurements.CarbonStoredT
	approvedAt := requestcontext.Now(ctx)
	rec.Review.Comments = append(rec.Review.Comments, req.Comments...)
	rec.Review.Recommendations = append(rec.Review.Recommendations, req.Recommendations...)
	rec.ApplyApprove(req.ReviewerID, approvedAt, req.CarbonOverride)

	entry := audit.Entry{
		Actor:        req.ReviewerID.String(),
		Action:       audit.ActionVerificationApproved,
		ResourceType: audit.ResourceVerification,
		ResourceID:   rec.ID.String(),
		Details: map[string]string{
			"project_id":      rec.ProjectID.String(),
			"carbon_stored_t": formatFloat(rec.Measurements.CarbonStoredT),
		},
	}
	if req.CarbonOverride != nil {
		entry.Details["carbon_override"] = formatFloat(*req.CarbonOverride)
		entry.Details["carbon_computed"] = formatFloat(original)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.recorder.Record(ctx, entry); err != nil {
			return err
		}
		if req.CarbonOverride != nil {
			if err := s.recorder.Record(ctx, audit.Entry{
				Actor:        req.ReviewerID.String(),
				Action:       audit.ActionCarbonOverride,
				ResourceType: audit.ResourceVerification,
				ResourceID:   rec.ID.String(),
				Details: map[string]string{
					"carbon_override": formatFloat(*req.CarbonOverride),
					"carbon_computed": formatFloat(original),
				},
			}); err != nil {
				return err
			}
		}
		return s.store.Update(ctx, rec, expected)
	})
	if err != nil {
		return nil, s.writeError(err)
	}

	s.releaseLease(ctx, rec.ID, req.ReviewerID)
	s.publishIssuance(ctx, rec, req.ReviewerID, approvedAt)

	s.logger.InfoContext(ctx, "verification approved",
		"verification_id", rec.ID.String(),
		"reviewer_id", req.ReviewerID.String(),
		"carbon_stored_t", rec.Measurements.CarbonStoredT)
	if s.metrics != nil {
		s.metrics.IncrementApproved()
		s.metrics.ObserveReview(start)
	}
	return rec, nil
}

// Reject moves an under_review record to rejected. A non-empty reason is
// required and lands in the review comments.
func (s *Service) Reject(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID, reason string) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Reject",
		trace.WithAttributes(attribute.String("verification_id", recordID.String())))
	defer span.End()
	start := time.Now()

	rec, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := rec.CanReject(reviewerID, reason); err != nil {
		return nil, err
	}

	expected := rec.Version
	rec.ApplyReject(reviewerID, reason, requestcontext.Now(ctx))

	err = s.transition(ctx, rec, expected, audit.Entry{
		Actor:        reviewerID.String(),
		Action:       audit.ActionVerificationRejected,
		ResourceType: audit.ResourceVerification,
		ResourceID:   rec.ID.String(),
		Details: map[string]string{
			"project_id": rec.ProjectID.String(),
			"reason":     reason,
		},
	})
	if err != nil {
		return nil, err
	}

	s.releaseLease(ctx, rec.ID, reviewerID)

	s.logger.InfoContext(ctx, "verification rejected",
		"verification_id", rec.ID.String(),
		"reviewer_id", reviewerID.String(),
		"reason", reason)
	if s.metrics != nil {
		s.metrics.IncrementRejected()
		s.metrics.ObserveReview(start)
	}
	return rec, nil
}

// OverrideMeasurement replaces the stored measurements on a non-terminal
// record. It exists for correcting model-derived figures before review
// completes; every call is audited with both the old and new values.
func (s *Service) OverrideMeasurement(ctx context.Context, recordID id.VerificationID, actor string, measurements Measurements) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "verification.OverrideMeasurement",
		trace.WithAttributes(attribute.String("verification_id", recordID.String())))
	defer span.End()

	if actor == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "override requires an actor")
	}
	if err := ValidateMeasurements(measurements); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	rec, err := s.load(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot override measurements on a %s record", rec.Status)
	}

	expected := rec.Version
	previous := rec.Measurements
	rec.Measurements = measurements
	rec.UpdatedAt = requestcontext.Now(ctx)

	err = s.transition(ctx, rec, expected, audit.Entry{
		Actor:        actor,
		Action:       audit.ActionAIOverride,
		ResourceType: audit.ResourceVerification,
		ResourceID:   rec.ID.String(),
		Details: map[string]string{
			"previous_carbon_stored_t": formatFloat(previous.CarbonStoredT),
			"new_carbon_stored_t":      formatFloat(measurements.CarbonStoredT),
			"previous_method":          string(previous.Method),
			"new_method":               string(measurements.Method),
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "measurements overridden",
		"verification_id", rec.ID.String(),
		"actor", actor)
	return rec, nil
}

// Get fetches a record by ID.
func (s *Service) Get(ctx context.Context, recordID id.VerificationID) (*Record, error) {
	return s.load(ctx, recordID)
}

// ListByProject lists all records for a project, oldest first.
func (s *Service) ListByProject(ctx context.Context, projectID id.ProjectID) ([]*Record, error) {
	recs, err := s.store.FindByProject(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications by project")
	}
	return recs, nil
}

// ListByVerifier lists all records submitted by a verifier, oldest first.
func (s *Service) ListByVerifier(ctx context.Context, verifierID id.VerifierID) ([]*Record, error) {
	recs, err := s.store.FindByVerifier(ctx, verifierID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications by verifier")
	}
	return recs, nil
}

// ListPending lists the review queue, oldest submission first.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*Record, error) {
	recs, err := s.store.FindPending(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending verifications")
	}
	return recs, nil
}

// ListOverdue lists records whose next verification is due on or before the
// request clock, soonest first.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]*Record, error) {
	recs, err := s.store.FindOverdue(ctx, asOf)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list overdue verifications")
	}
	return recs, nil
}

func (s *Service) load(ctx context.Context, recordID id.VerificationID) (*Record, error) {
	rec, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "verification %s not found", recordID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification record")
	}
	return rec, nil
}

// transition writes a mutated record and its audit entry atomically.
func (s *Service) transition(ctx context.Context, rec *Record, expectedVersion int64, entry audit.Entry) error {
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.recorder.Record(ctx, entry); err != nil {
			return err
		}
		return s.store.Update(ctx, rec, expectedVersion)
	})
	if err != nil {
		return s.writeError(err)
	}
	return nil
}

// writeError maps store write failures onto domain error codes and counts
// lost compare-and-swap races.
func (s *Service) writeError(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		if s.metrics != nil {
			s.metrics.IncrementVersionConflict()
		}
		return dErrors.New(dErrors.CodeConflict, "verification record was modified concurrently, retry with the latest version")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verification record not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification record")
}

func (s *Service) releaseLease(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID) {
	if s.lease == nil {
		return
	}
	if err := s.lease.Release(ctx, recordID, reviewerID); err != nil {
		s.logger.WarnContext(ctx, "failed to release review lease",
			"verification_id", recordID.String(),
			"error", err)
	}
}

// OnApproved builds the issuance trigger for an approved record. It is pure:
// the amount is whatever the record carries after any reviewer override.
func OnApproved(rec *Record, approvedBy id.VerifierID, approvedAt time.Time) issuance.Request {
	standards := make([]string, 0, len(rec.Methodology.Standards))
	for _, std := range rec.Methodology.Standards {
		standards = append(standards, string(std))
	}
	return issuance.Request{
		VerificationID: rec.ID,
		ProjectID:      rec.ProjectID,
		AmountTCO2:     rec.Measurements.CarbonStoredT,
		Standards:      standards,
		ApprovedBy:     approvedBy,
		ApprovedAt:     approvedAt,
	}
}

// publishIssuance emits the issuance trigger for an approved record and
// audits the attempt, failed or not. Publish failures are never propagated:
// the approval has already committed, and the audit entry carries enough to
// replay the trigger.
func (s *Service) publishIssuance(ctx context.Context, rec *Record, approvedBy id.VerifierID, approvedAt time.Time) {
	req := OnApproved(rec, approvedBy, approvedAt)
	details := map[string]string{
		"project_id":   rec.ProjectID.String(),
		"amount_t_co2": formatFloat(req.AmountTCO2),
		"published":    "true",
	}
	if err := s.issuer.Publish(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish issuance request",
			"verification_id", rec.ID.String(),
			"error", err)
		details["published"] = "false"
		details["error"] = err.Error()
	}
	if err := s.recorder.Record(ctx, audit.Entry{
		Actor:        approvedBy.String(),
		Action:       audit.ActionIssuanceRequested,
		ResourceType: audit.ResourceVerification,
		ResourceID:   rec.ID.String(),
		Details:      details,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit issuance request",
			"verification_id", rec.ID.String(),
			"error", err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
