package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
// Tracks lifecycle transitions and critical path durations.
type Metrics struct {
	Submitted        prometheus.Counter
	Approved         prometheus.Counter
	Rejected         prometheus.Counter
	VersionConflicts prometheus.Counter
	SubmitDuration   prometheus.Histogram
	ReviewDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all verification module metrics registered.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bluecarbon_verifications_submitted_total",
			Help: "Total number of verification records submitted",
		}),
		Approved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bluecarbon_verifications_approved_total",
			Help: "Total number of verification records approved",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bluecarbon_verifications_rejected_total",
			Help: "Total number of verification records rejected",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bluecarbon_verification_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts on record writes",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bluecarbon_verification_submit_duration_seconds",
			Help:    "Duration of Submit operations (normalization plus persistence)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ReviewDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bluecarbon_verification_review_duration_seconds",
			Help:    "Duration of review transitions (begin, approve, reject)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementSubmitted records a successful submission.
func (m *Metrics) IncrementSubmitted() {
	m.Submitted.Inc()
}

// IncrementApproved records a successful approval.
func (m *Metrics) IncrementApproved() {
	m.Approved.Inc()
}

// IncrementRejected records a rejection.
func (m *Metrics) IncrementRejected() {
	m.Rejected.Inc()
}

// IncrementVersionConflict records a lost compare-and-swap write.
func (m *Metrics) IncrementVersionConflict() {
	m.VersionConflicts.Inc()
}

// ObserveSubmit records the duration of a Submit operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// ObserveReview records the duration of a review transition.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReview(start time.Time) {
	m.ReviewDuration.Observe(time.Since(start).Seconds())
}
