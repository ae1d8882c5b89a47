// Package metrics exposes Prometheus instrumentation for the verification
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	// StageFailures counts failures by pipeline stage and reason.
	StageFailures *prometheus.CounterVec
	// AttemptsStarted counts verification attempts entering the pipeline.
	AttemptsStarted prometheus.Counter
	// AttendanceRecorded counts successfully stored attendance events.
	AttendanceRecorded prometheus.Counter
	// LivenessTicks observes how many detection ticks a passed liveness
	// challenge consumed.
	LivenessTicks prometheus.Histogram
	// MatchConfidence observes the display confidence of accepted matches.
	MatchConfidence prometheus.Histogram
}

// New registers the pipeline collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "face_attend",
			Name:      "verification_failures_total",
			Help:      "Verification failures by stage and reason.",
		}, []string{"stage", "reason"}),
		AttemptsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "face_attend",
			Name:      "verification_attempts_total",
			Help:      "Verification attempts started.",
		}),
		AttendanceRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "face_attend",
			Name:      "attendance_recorded_total",
			Help:      "Attendance records successfully stored.",
		}),
		LivenessTicks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "face_attend",
			Name:      "liveness_ticks",
			Help:      "Detection ticks consumed by passed liveness challenges.",
			Buckets:   prometheus.LinearBuckets(5, 5, 12),
		}),
		MatchConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "face_attend",
			Name:      "match_confidence_percent",
			Help:      "Display confidence of accepted face matches.",
			Buckets:   prometheus.LinearBuckets(50, 5, 10),
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests and
// callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
