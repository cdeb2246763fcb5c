// Package domain holds the typed identifiers shared across features.
//
// IDs are distinct named types over uuid.UUID so a VerificationID can never
// be passed where a ProjectID is expected. Parse helpers enforce the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "bluecarbon/pkg/domain-errors"
)

type (
	// VerificationID identifies a verification record (the aggregate root).
	VerificationID uuid.UUID

	// ProjectID identifies the ecosystem/project a verification belongs to.
	ProjectID uuid.UUID

	// VerifierID identifies the verifier or reviewer acting on a record.
	VerifierID uuid.UUID

	// CreditID identifies an issued carbon credit linked to a verification.
	CreditID uuid.UUID
)

func (v VerificationID) String() string { return uuid.UUID(v).String() }
func (p ProjectID) String() string      { return uuid.UUID(p).String() }
func (v VerifierID) String() string     { return uuid.UUID(v).String() }
func (c CreditID) String() string       { return uuid.UUID(c).String() }

func (v VerificationID) IsNil() bool { return uuid.UUID(v) == uuid.Nil }
func (p ProjectID) IsNil() bool      { return uuid.UUID(p) == uuid.Nil }
func (v VerifierID) IsNil() bool     { return uuid.UUID(v) == uuid.Nil }
func (c CreditID) IsNil() bool       { return uuid.UUID(c) == uuid.Nil }

func (v VerificationID) MarshalText() ([]byte, error) { return []byte(v.String()), nil }
func (p ProjectID) MarshalText() ([]byte, error)      { return []byte(p.String()), nil }
func (v VerifierID) MarshalText() ([]byte, error)     { return []byte(v.String()), nil }
func (c CreditID) MarshalText() ([]byte, error)       { return []byte(c.String()), nil }

func (v *VerificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseVerificationID(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (p *ProjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseProjectID(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (v *VerifierID) UnmarshalText(b []byte) error {
	parsed, err := ParseVerifierID(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (c *CreditID) UnmarshalText(b []byte) error {
	parsed, err := ParseCreditID(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// NewVerificationID returns a fresh random VerificationID.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// ParseVerificationID parses and validates a verification ID string.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification id")
	return VerificationID(u), err
}

// ParseProjectID parses and validates a project ID string.
func ParseProjectID(s string) (ProjectID, error) {
	u, err := parseUUID(s, "project id")
	return ProjectID(u), err
}

// ParseVerifierID parses and validates a verifier ID string.
func ParseVerifierID(s string) (VerifierID, error) {
	u, err := parseUUID(s, "verifier id")
	return VerifierID(u), err
}

// ParseCreditID parses and validates a credit ID string.
func ParseCreditID(s string) (CreditID, error) {
	u, err := parseUUID(s, "credit id")
	return CreditID(u), err
}

// parseUUID rejects empty strings, malformed UUIDs, and the nil UUID.
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return u, nil
}
