package handler

import (
	"bluecarbon/internal/verification"
)

// RecordResponse is a verification record plus its advisory quality score.
// The score is recomputed on every read, never stored.
type RecordResponse struct {
	*verification.Record
	QualityScore int `json:"quality_score"`
}

// FromRecord builds the response envelope for one record.
func FromRecord(rec *verification.Record) RecordResponse {
	return RecordResponse{Record: rec, QualityScore: verification.Score(rec)}
}

// ListResponse wraps a set of records.
type ListResponse struct {
	Verifications []RecordResponse `json:"verifications"`
	Count         int              `json:"count"`
}

// FromRecords builds the response envelope for a record list.
func FromRecords(recs []*verification.Record) ListResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return ListResponse{Verifications: out, Count: len(out)}
}
