package handler

import (
	"strings"

	"bluecarbon/internal/measurement"
	"bluecarbon/internal/verification"
	id "bluecarbon/pkg/domain"
	dErrors "bluecarbon/pkg/domain-errors"
)

// SubmitRequest is the HTTP request body for POST /verifications.
type SubmitRequest struct {
	VerifierID    string                             `json:"verifier_id"`
	ProjectID     string                             `json:"project_id"`
	Type          string                             `json:"verification_type"`
	Methodology   verification.Methodology           `json:"methodology"`
	Measurements  verification.Measurements          `json:"measurements"`
	Documents     []verification.Document            `json:"documents,omitempty"`
	FieldData     []measurement.FieldPlot            `json:"field_data,omitempty"`
	SatelliteData []measurement.SatelliteObservation `json:"satellite_data,omitempty"`
	QA            verification.QualityAssurance      `json:"quality_assurance"`
	Tags          []string                           `json:"tags,omitempty"`
	Notes         string                             `json:"notes,omitempty"`

	parsedVerifierID id.VerifierID
	parsedProjectID  id.ProjectID
}

// Validate parses the identifiers. Measurement and methodology invariants
// are enforced by the domain layer, not repeated here.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	verifierID, err := id.ParseVerifierID(strings.TrimSpace(r.VerifierID))
	if err != nil {
		return err
	}
	projectID, err := id.ParseProjectID(strings.TrimSpace(r.ProjectID))
	if err != nil {
		return err
	}
	r.parsedVerifierID = verifierID
	r.parsedProjectID = projectID
	return nil
}

// Domain builds the service request from a validated body.
func (r *SubmitRequest) Domain() verification.SubmitRequest {
	return verification.SubmitRequest{
		VerifierID:    r.parsedVerifierID,
		ProjectID:     r.parsedProjectID,
		Type:          verification.Type(strings.TrimSpace(r.Type)),
		Methodology:   r.Methodology,
		Measurements:  r.Measurements,
		Documents:     r.Documents,
		FieldData:     r.FieldData,
		SatelliteData: r.SatelliteData,
		QA:            r.QA,
		Tags:          r.Tags,
		Notes:         r.Notes,
	}
}

// ReviewRequest is the body for POST /verifications/{id}/review.
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`

	parsedReviewerID id.VerifierID
}

func (r *ReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	reviewerID, err := id.ParseVerifierID(strings.TrimSpace(r.ReviewerID))
	if err != nil {
		return err
	}
	r.parsedReviewerID = reviewerID
	return nil
}

// ApproveRequest is the body for POST /verifications/{id}/approve.
type ApproveRequest struct {
	ReviewerID      string   `json:"reviewer_id"`
	ComplianceScore *float64 `json:"compliance_score,omitempty"`
	CarbonOverride  *float64 `json:"carbon_override_t,omitempty"`
	Comments        []string `json:"comments,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	parsedReviewerID id.VerifierID
}

func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	reviewerID, err := id.ParseVerifierID(strings.TrimSpace(r.ReviewerID))
	if err != nil {
		return err
	}
	r.parsedReviewerID = reviewerID
	return nil
}

// RejectRequest is the body for POST /verifications/{id}/reject.
type RejectRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`

	parsedReviewerID id.VerifierID
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	reviewerID, err := id.ParseVerifierID(strings.TrimSpace(r.ReviewerID))
	if err != nil {
		return err
	}
	r.parsedReviewerID = reviewerID
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

func invalidLimit() error {
	return dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer")
}

// OverrideRequest is the body for PUT /verifications/{id}/measurements.
type OverrideRequest struct {
	Actor        string                    `json:"actor"`
	Measurements verification.Measurements `json:"measurements"`
}

func (r *OverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Actor = strings.TrimSpace(r.Actor)
	if r.Actor == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	return nil
}
