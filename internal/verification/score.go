package verification

// Score computes the advisory quality score for a record. It grades the
// stated measurement confidence and rewards independent scrutiny; it is
// recomputable from the record at any time and never persisted.
//
// The score is advisory only: approval authority rests with the reviewer,
// and the auditor-assigned compliance score is a separate fact.
func Score(r *Record) int {
	var score int
	switch r.Measurements.Confidence {
	case ConfidenceHigh:
		score = 90
	case ConfidenceMedium:
		score = 60
	case ConfidenceLow:
		score = 30
	}
	if r.QA.PeerReviewed {
		score += 5
	}
	if r.QA.ThirdPartyAudit {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}
