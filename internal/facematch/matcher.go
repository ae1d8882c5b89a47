// Package facematch compares face embeddings and decides whether a probe
// face belongs to an enrolled identity.
package facematch

import (
	"fmt"
	"math"
)

// DefaultThreshold is the stock Euclidean distance cutoff for a match. It is
// deliberately permissive, favoring fewer false rejections over strict
// false-acceptance; deployments tune it.
const DefaultThreshold = 0.4

// maxDisplayDistance caps the distance used for the confidence display
// mapping. Normalized face embeddings land in [0, 2].
const maxDisplayDistance = 2.0

// Result is the outcome of comparing a probe embedding against an enrolled
// one.
type Result struct {
	IsMatch bool `json:"is_match"`
	// Distance is the raw Euclidean distance the match decision was made on.
	Distance float64 `json:"distance"`
	// ConfidencePercent is a bounded 0-100 display value, monotonically
	// decreasing in distance. It is for users only; the decision never
	// depends on it.
	ConfidencePercent float64 `json:"confidence_percent"`
}

// EuclideanDistance computes the Euclidean distance between two embeddings.
// Both must have the same length; a mismatch is a programmer error and
// panics.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("facematch: embedding length mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match compares a probe embedding against an enrolled one. The pass/fail
// decision is raw distance vs threshold; the confidence percentage is derived
// separately so display rounding can never flip the decision.
func Match(enrolled, probe []float32, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	d := EuclideanDistance(enrolled, probe)
	return Result{
		IsMatch:           d <= threshold,
		Distance:          d,
		ConfidencePercent: ConfidencePercent(d),
	}
}

// ConfidencePercent maps a distance into a bounded 0-100 display scale.
func ConfidencePercent(distance float64) float64 {
	c := (1 - distance/maxDisplayDistance) * 100
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
