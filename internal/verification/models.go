// Package verification owns the verification record aggregate: the data
// model, its lifecycle state machine, and the advisory quality score that
// together gate carbon-credit issuance.
package verification

import (
	"fmt"
	"strconv"
	"time"

	"bluecarbon/internal/measurement"
	id "bluecarbon/pkg/domain"
	dErrors "bluecarbon/pkg/domain-errors"
)

// Type classifies why a verification was opened.
type Type string

const (
	TypeInitial    Type = "initial"
	TypePeriodic   Type = "periodic"
	TypeRetirement Type = "retirement"
	TypeDispute    Type = "dispute"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInitial, TypePeriodic, TypeRetirement, TypeDispute:
		return true
	}
	return false
}

// MeasurementMethod describes how the carbon figures were obtained.
type MeasurementMethod string

const (
	MethodSatellite MeasurementMethod = "satellite"
	MethodField     MeasurementMethod = "field"
	MethodModel     MeasurementMethod = "model"
	MethodHybrid    MeasurementMethod = "hybrid"
)

func (m MeasurementMethod) Valid() bool {
	switch m {
	case MethodSatellite, MethodField, MethodModel, MethodHybrid:
		return true
	}
	return false
}

// ConfidenceLevel grades the measurement confidence.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Standard is a third-party certification standard tag.
type Standard string

const (
	StandardVCS          Standard = "VCS"
	StandardGoldStandard Standard = "Gold Standard"
	StandardCDM          Standard = "CDM"
	StandardCAR          Standard = "CAR"
	StandardACR          Standard = "ACR"
	StandardOther        Standard = "Other"
)

func (s Standard) Valid() bool {
	switch s {
	case StandardVCS, StandardGoldStandard, StandardCDM, StandardCAR, StandardACR, StandardOther:
		return true
	}
	return false
}

// Methodology describes the verification methodology applied.
type Methodology struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Standards   []Standard `json:"standards"`
}

// Measurements carries the headline carbon figures for the record.
type Measurements struct {
	CarbonStoredT      float64           `json:"carbon_stored_t"`
	SequestrationRateT float64           `json:"sequestration_rate_t_yr"`
	MeasurementDate    time.Time         `json:"measurement_date"`
	Method             MeasurementMethod `json:"method"`
	Confidence         ConfidenceLevel   `json:"confidence"`
	UncertaintyPct     float64           `json:"uncertainty_pct"`
}

// DocumentType classifies supporting documents.
type DocumentType string

const (
	DocumentReport      DocumentType = "report"
	DocumentCertificate DocumentType = "certificate"
	DocumentStudy       DocumentType = "study"
	DocumentImage       DocumentType = "image"
	DocumentData        DocumentType = "data"
)

// Document references externally stored evidence. Only URL, hash, size, and
// timestamp are kept; binary content never enters this system.
type Document struct {
	Title      string       `json:"title"`
	Type       DocumentType `json:"type"`
	URL        string       `json:"url"`
	Hash       string       `json:"hash"`
	SizeBytes  int64        `json:"size_bytes"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// QualityAssurance holds the independent audit facts. ComplianceScore is set
// by an auditor and is never derived; the advisory Score function is a
// separate computation.
type QualityAssurance struct {
	PeerReviewed    bool       `json:"peer_reviewed"`
	ThirdPartyAudit bool       `json:"third_party_audit"`
	AuditorID       string     `json:"auditor_id,omitempty"`
	AuditDate       *time.Time `json:"audit_date,omitempty"`
	AuditReport     string     `json:"audit_report,omitempty"`
	ComplianceScore *float64   `json:"compliance_score,omitempty"`
}

// Review accumulates the reviewer's findings.
type Review struct {
	ReviewerID      *id.VerifierID `json:"reviewer_id,omitempty"`
	ReviewDate      *time.Time     `json:"review_date,omitempty"`
	Comments        []string       `json:"comments,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	ApprovalDate    *time.Time     `json:"approval_date,omitempty"`
}

// Metadata carries versioning and scheduling information.
type Metadata struct {
	Version                string             `json:"version"`
	PreviousVerificationID *id.VerificationID `json:"previous_verification_id,omitempty"`
	NextVerificationDue    *time.Time         `json:"next_verification_due,omitempty"`
	Tags                   []string           `json:"tags,omitempty"`
	Notes                  string             `json:"notes,omitempty"`
}

const maxNotesLength = 1000

// Record is the verification aggregate root.
//
// Invariants:
//   - At least one of FieldData or SatelliteData is populated
//   - Measurements are valid per ValidateMeasurements
//   - Status transitions follow the closed table in status.go
//   - For periodic records NextVerificationDue is always set at creation and
//     never overwritten afterwards
//   - Records are never deleted; corrections create a new record referencing
//     this one through Metadata.PreviousVerificationID
//
// Version implements optimistic concurrency: stores reject writes whose
// expected version lost a race, and the service surfaces that as a conflict
// the caller retries after refetching.
type Record struct {
	ID            id.VerificationID                  `json:"id"`
	VerifierID    id.VerifierID                      `json:"verifier_id"`
	ProjectID     id.ProjectID                       `json:"project_id"`
	CreditID      *id.CreditID                       `json:"credit_id,omitempty"`
	Type          Type                               `json:"verification_type"`
	Status        Status                             `json:"status"`
	Methodology   Methodology                        `json:"methodology"`
	Measurements  Measurements                       `json:"measurements"`
	Documents     []Document                         `json:"documents,omitempty"`
	FieldData     []measurement.FieldPlot            `json:"field_data,omitempty"`
	SatelliteData []measurement.SatelliteObservation `json:"satellite_data,omitempty"`
	QA            QualityAssurance                   `json:"quality_assurance"`
	Review        Review                             `json:"review"`
	Metadata      Metadata                           `json:"metadata"`
	Version       int64                              `json:"record_version"`
	CreatedAt     time.Time                          `json:"created_at"`
	UpdatedAt     time.Time                          `json:"updated_at"`
}

// ValidateMeasurements enforces the measurement invariants shared by
// submission and round-trip loading.
func ValidateMeasurements(m Measurements) error {
	if m.CarbonStoredT < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "carbon_stored_t must not be negative")
	}
	if m.SequestrationRateT < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "sequestration_rate_t_yr must not be negative")
	}
	if m.MeasurementDate.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "measurement_date is required")
	}
	if !m.Method.Valid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "measurement method %q is not valid", m.Method)
	}
	if !m.Confidence.Valid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "confidence %q is not valid", m.Confidence)
	}
	if m.UncertaintyPct < 0 || m.UncertaintyPct > 100 {
		return dErrors.New(dErrors.CodeInvariantViolation, "uncertainty_pct must be between 0 and 100")
	}
	return nil
}

// NewRecord constructs a pending verification record, enforcing the
// aggregate invariants. ScheduleNextDue must be applied by the submission
// use case before persistence; the constructor does not set it implicitly.
func NewRecord(
	recordID id.VerificationID,
	verifierID id.VerifierID,
	projectID id.ProjectID,
	vType Type,
	methodology Methodology,
	measurements Measurements,
	now time.Time,
) (*Record, error) {
	if recordID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification id is required")
	}
	if verifierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier id is required")
	}
	if projectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project id is required")
	}
	if !vType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "verification type %q is not valid", vType)
	}
	if methodology.Name == "" || methodology.Version == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "methodology name and version are required")
	}
	for _, std := range methodology.Standards {
		if !std.Valid() {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "standard %q is not recognized", std)
		}
	}
	if err := ValidateMeasurements(measurements); err != nil {
		return nil, err
	}

	return &Record{
		ID:           recordID,
		VerifierID:   verifierID,
		ProjectID:    projectID,
		Type:         vType,
		Status:       StatusPending,
		Methodology:  methodology,
		Measurements: measurements,
		Metadata:     Metadata{Version: "1.0"},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetNotes enforces the notes length cap.
func (r *Record) SetNotes(notes string) error {
	if len(notes) > maxNotesLength {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "notes must be %d characters or less", maxNotesLength)
	}
	r.Metadata.Notes = notes
	return nil
}

// HasEvidence reports whether at least one of field or satellite data is
// attached. Submission requires it.
func (r *Record) HasEvidence() bool {
	return len(r.FieldData) > 0 || len(r.SatelliteData) > 0
}

// ScheduleNextDue sets NextVerificationDue for periodic records when absent:
// one year after the measurement date. An existing value is never
// overwritten. Explicit so the submission use case calls it before
// persistence rather than relying on a hidden save hook.
func ScheduleNextDue(r *Record) {
	if r.Type != TypePeriodic {
		return
	}
	if r.Metadata.NextVerificationDue != nil {
		return
	}
	due := r.Measurements.MeasurementDate.AddDate(1, 0, 0)
	r.Metadata.NextVerificationDue = &due
}

// invalidTransition builds the uniform error for state machine misuse.
func invalidTransition(from Status, action string) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot %s a %s record", action, from)
}

// CanBeginReview checks the pending -> under_review guard. Re-entry by the
// reviewer already assigned is an idempotent no-op signalled by (false, nil);
// a different reviewer on an under_review record is a conflict.
func (r *Record) CanBeginReview(reviewerID id.VerifierID) (apply bool, err error) {
	if reviewerID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}
	if r.Status == StatusUnderReview {
		if r.Review.ReviewerID != nil && *r.Review.ReviewerID == reviewerID {
			return false, nil
		}
		return false, dErrors.Newf(dErrors.CodeConflict, "verification %s is already under review by another reviewer", r.ID)
	}
	if !r.Status.CanTransitionTo(StatusUnderReview) {
		return false, invalidTransition(r.Status, "begin review of")
	}
	return true, nil
}

// ApplyBeginReview transitions into under_review and assigns the reviewer.
func (r *Record) ApplyBeginReview(reviewerID id.VerifierID, now time.Time) {
	r.Status = StatusUnderReview
	r.Review.ReviewerID = &reviewerID
	r.Review.ReviewDate = &now
	r.UpdatedAt = now
}

// CanApprove checks the under_review -> approved guard. Approval requires an
// auditor-assigned compliance score.
func (r *Record) CanApprove(reviewerID id.VerifierID) error {
	if reviewerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}
	if !r.Status.CanTransitionTo(StatusApproved) {
		return invalidTransition(r.Status, "approve")
	}
	if r.Review.ReviewerID != nil && *r.Review.ReviewerID != reviewerID {
		return dErrors.Newf(dErrors.CodeConflict, "verification %s is under review by another reviewer", r.ID)
	}
	if r.QA.ComplianceScore == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "approval requires a compliance score")
	}
	return nil
}

// ApplyApprove transitions into approved. A carbon override replaces the
// stored figure for issuance; the computed value is preserved in the review
// comments so it is never silently discarded.
func (r *Record) ApplyApprove(reviewerID id.VerifierID, approvalDate time.Time, carbonOverride *float64) {
	r.Status = StatusApproved
	r.Review.ReviewerID = &reviewerID
	r.Review.ApprovalDate = &approvalDate
	if carbonOverride != nil {
		original := r.Measurements.CarbonStoredT
		r.Measurements.CarbonStoredT = *carbonOverride
		r.Review.Comments = append(r.Review.Comments, fmt.Sprintf(
			"carbon stored overridden at approval: %s t CO2 (computed value %s t CO2 retained for audit)",
			strconv.FormatFloat(*carbonOverride, 'f', -1, 64),
			strconv.FormatFloat(original, 'f', -1, 64),
		))
	}
	r.UpdatedAt = approvalDate
}

// CanReject checks the under_review -> rejected guard. A non-empty reason is
// required.
func (r *Record) CanReject(reviewerID id.VerifierID, reason string) error {
	if reviewerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection requires a reason")
	}
	if !r.Status.CanTransitionTo(StatusRejected) {
		return invalidTransition(r.Status, "reject")
	}
	if r.Review.ReviewerID != nil && *r.Review.ReviewerID != reviewerID {
		return dErrors.Newf(dErrors.CodeConflict, "verification %s is under review by another reviewer", r.ID)
	}
	return nil
}

// ApplyReject transitions into rejected and persists the reason.
func (r *Record) ApplyReject(reviewerID id.VerifierID, reason string, now time.Time) {
	r.Status = StatusRejected
	r.Review.ReviewerID = &reviewerID
	r.Review.Comments = append(r.Review.Comments, "rejected: "+reason)
	r.UpdatedAt = now
}

// Clone returns a deep copy so store reads never alias store state.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Methodology.Standards = append([]Standard(nil), r.Methodology.Standards...)
	cp.Documents = append([]Document(nil), r.Documents...)
	cp.FieldData = append([]measurement.FieldPlot(nil), r.FieldData...)
	cp.SatelliteData = append([]measurement.SatelliteObservation(nil), r.SatelliteData...)
	cp.Review.Comments = append([]string(nil), r.Review.Comments...)
	cp.Review.Recommendations = append([]string(nil), r.Review.Recommendations...)
	cp.Metadata.Tags = append([]string(nil), r.Metadata.Tags...)
	if r.CreditID != nil {
		creditID := *r.CreditID
		cp.CreditID = &creditID
	}
	if r.QA.ComplianceScore != nil {
		score := *r.QA.ComplianceScore
		cp.QA.ComplianceScore = &score
	}
	if r.QA.AuditDate != nil {
		d := *r.QA.AuditDate
		cp.QA.AuditDate = &d
	}
	if r.Review.ReviewerID != nil {
		reviewer := *r.Review.ReviewerID
		cp.Review.ReviewerID = &reviewer
	}
	if r.Review.ReviewDate != nil {
		d := *r.Review.ReviewDate
		cp.Review.ReviewDate = &d
	}
	if r.Review.ApprovalDate != nil {
		d := *r.Review.ApprovalDate
		cp.Review.ApprovalDate = &d
	}
	if r.Metadata.PreviousVerificationID != nil {
		prev := *r.Metadata.PreviousVerificationID
		cp.Metadata.PreviousVerificationID = &prev
	}
	if r.Metadata.NextVerificationDue != nil {
		due := *r.Metadata.NextVerificationDue
		cp.Metadata.NextVerificationDue = &due
	}
	return &cp
}
