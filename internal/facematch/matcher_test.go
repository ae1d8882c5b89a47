package facematch

import (
	"math"
	"testing"
)

func TestEuclideanDistance_Symmetry(t *testing.T) {
	a := []float32{0.1, 0.2, 0.3, 0.4}
	b := []float32{0.4, 0.3, 0.2, 0.1}

	if d1, d2 := EuclideanDistance(a, b), EuclideanDistance(b, a); d1 != d2 {
		t.Errorf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestEuclideanDistance_Identity(t *testing.T) {
	a := []float32{0.5, -0.25, 0.125}
	if d := EuclideanDistance(a, a); d != 0 {
		t.Errorf("expected zero distance for identical vectors, got %f", d)
	}
}

func TestEuclideanDistance_KnownValue(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{3, 4, 0}
	if d := EuclideanDistance(a, b); math.Abs(d-5) > 1e-9 {
		t.Errorf("expected 5, got %f", d)
	}
}

func TestEuclideanDistance_PanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on mismatched embedding lengths")
		}
	}()
	EuclideanDistance([]float32{1, 2}, []float32{1, 2, 3})
}

func TestMatch_PermissiveThreshold(t *testing.T) {
	// Distance 0.35 against threshold 0.4 must match.
	enrolled := []float32{0, 0, 0, 0}
	probe := []float32{0.35, 0, 0, 0}

	res := Match(enrolled, probe, 0.4)
	if !res.IsMatch {
		t.Errorf("expected match at distance %f vs threshold 0.4", res.Distance)
	}
	if math.Abs(res.Distance-0.35) > 1e-6 {
		t.Errorf("expected distance 0.35, got %f", res.Distance)
	}
}

func TestMatch_RejectsBeyondThreshold(t *testing.T) {
	enrolled := []float32{0, 0, 0, 0}
	probe := []float32{0.5, 0, 0, 0}

	res := Match(enrolled, probe, 0.4)
	if res.IsMatch {
		t.Errorf("expected no match at distance %f vs threshold 0.4", res.Distance)
	}
}

func TestMatch_BoundaryDistanceMatches(t *testing.T) {
	enrolled := []float32{0, 0}
	probe := []float32{0.4, 0}

	res := Match(enrolled, probe, 0.4)
	if !res.IsMatch {
		t.Errorf("distance exactly at the threshold must match, got %f", res.Distance)
	}
}

func TestConfidencePercent_Bounds(t *testing.T) {
	if c := ConfidencePercent(0); c != 100 {
		t.Errorf("zero distance must map to 100%%, got %f", c)
	}
	if c := ConfidencePercent(5); c != 0 {
		t.Errorf("huge distance must clamp to 0%%, got %f", c)
	}
}

func TestConfidencePercent_MonotonicallyDecreasing(t *testing.T) {
	prev := ConfidencePercent(0)
	for d := 0.1; d <= 2.0; d += 0.1 {
		c := ConfidencePercent(d)
		if c > prev {
			t.Fatalf("confidence must not increase with distance: %f%% at %f after %f%%", c, d, prev)
		}
		prev = c
	}
}

func TestMatch_DecisionIndependentOfDisplayRounding(t *testing.T) {
	// Two distances that round to the same display percentage must still
	// decide differently around the threshold.
	enrolled := []float32{0, 0}
	just := Match(enrolled, []float32{0.3999, 0}, 0.4)
	over := Match(enrolled, []float32{0.4001, 0}, 0.4)

	if !just.IsMatch || over.IsMatch {
		t.Errorf("decision must follow raw distance: %v / %v", just.IsMatch, over.IsMatch)
	}
}
