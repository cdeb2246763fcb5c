package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		confidence ConfidenceLevel
		peer       bool
		audit      bool
		want       int
	}{
		{name: "low confidence", confidence: ConfidenceLow, want: 30},
		{name: "medium confidence", confidence: ConfidenceMedium, want: 60},
		{name: "high confidence", confidence: ConfidenceHigh, want: 90},
		{name: "peer review bonus", confidence: ConfidenceMedium, peer: true, want: 65},
		{name: "audit bonus", confidence: ConfidenceMedium, audit: true, want: 65},
		{name: "both bonuses", confidence: ConfidenceLow, peer: true, audit: true, want: 40},
		{name: "clamped at 100", confidence: ConfidenceHigh, peer: true, audit: true, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{
				Measurements: Measurements{Confidence: tt.confidence},
				QA:           QualityAssurance{PeerReviewed: tt.peer, ThirdPartyAudit: tt.audit},
			}
			assert.Equal(t, tt.want, Score(r))
		})
	}
}
