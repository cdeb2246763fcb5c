package issuance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bluecarbon/pkg/domain"
	dErrors "bluecarbon/pkg/domain-errors"
)

func validRequest(t *testing.T) Request {
	t.Helper()
	projectID, err := id.ParseProjectID("22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	approver, err := id.ParseVerifierID("33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)
	return Request{
		VerificationID: id.NewVerificationID(),
		ProjectID:      projectID,
		AmountTCO2:     1500.5,
		Standards:      []string{"VCS"},
		ApprovedBy:     approver,
		ApprovedAt:     time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestRequestValidate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, validRequest(t).Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing verification id", func(r *Request) { r.VerificationID = id.VerificationID{} }},
		{"missing project id", func(r *Request) { r.ProjectID = id.ProjectID{} }},
		{"zero amount", func(r *Request) { r.AmountTCO2 = 0 }},
		{"negative amount", func(r *Request) { r.AmountTCO2 = -10 }},
		{"missing approver", func(r *Request) { r.ApprovedBy = id.VerifierID{} }},
		{"zero approval time", func(r *Request) { r.ApprovedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(t)
			tt.mutate(&req)
			err := req.Validate()
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}
