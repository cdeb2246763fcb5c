// Package issuance publishes credit issuance requests for approved
// verifications. Issuance itself happens downstream in the registry; this
// package only emits the trigger event.
package issuance

import (
	"context"
	"time"

	id "bluecarbon/pkg/domain"
	dErrors "bluecarbon/pkg/domain-errors"
)

// Request is the issuance trigger emitted when a verification is approved.
// AmountTCO2 is the approved figure, after any reviewer override.
type Request struct {
	VerificationID id.VerificationID `json:"verification_id"`
	ProjectID      id.ProjectID      `json:"project_id"`
	AmountTCO2     float64           `json:"amount_t_co2"`
	Standards      []string          `json:"standards,omitempty"`
	ApprovedBy     id.VerifierID     `json:"approved_by"`
	ApprovedAt     time.Time         `json:"approved_at"`
}

// Validate enforces the request invariants before publishing.
func (r Request) Validate() error {
	if r.VerificationID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuance request requires a verification id")
	}
	if r.ProjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuance request requires a project id")
	}
	if r.AmountTCO2 <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuance amount must be positive")
	}
	if r.ApprovedBy.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuance request requires an approver")
	}
	if r.ApprovedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuance request requires an approval time")
	}
	return nil
}

// Publisher delivers issuance requests to the downstream registry pipeline.
type Publisher interface {
	Publish(ctx context.Context, req Request) error
}

// NopPublisher drops requests. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Request) error { return nil }
