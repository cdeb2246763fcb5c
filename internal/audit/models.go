// Package audit records every state transition and manual override as an
// append-only trail. Entries are never updated, deleted, or reordered; the
// store exposes only Append and read queries.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action is a typed audit action name.
type Action string

const (
	ActionVerificationSubmitted Action = "verification_submitted"
	ActionReviewStarted         Action = "review_started"
	ActionVerificationApproved  Action = "verification_approved"
	ActionVerificationRejected  Action = "verification_rejected"
	ActionCarbonOverride        Action = "carbon_override"
	ActionAIOverride            Action = "ai_override"
	ActionIssuanceRequested     Action = "issuance_requested"
)

// Resource types referenced by audit entries.
const (
	ResourceVerification = "verification"
	ResourceProject      = "project"
)

// Entry is one immutable audit record. Details carries structured context
// (attempted transition, override values, reviewer comments) as a flat
// string map so stores can persist it as JSON without schema churn.
type Entry struct {
	ID           uuid.UUID         `json:"id"`
	Actor        string            `json:"actor"`
	Action       Action            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Timestamp    time.Time         `json:"timestamp"`
	RequestID    string            `json:"request_id,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}
