package geo

import (
	"math"
	"testing"
)

func TestDistance_ZeroForIdenticalPoints(t *testing.T) {
	p := Coordinates{Latitude: 50.0755, Longitude: 14.4378}
	if d := Distance(p, p); d != 0 {
		t.Errorf("expected zero distance, got %f", d)
	}
}

func TestDistance_Symmetry(t *testing.T) {
	prague := Coordinates{Latitude: 50.0755, Longitude: 14.4378}
	brno := Coordinates{Latitude: 49.1951, Longitude: 16.6068}

	ab := Distance(prague, brno)
	ba := Distance(brno, prague)

	if ab != ba {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func TestDistance_KnownCityPair(t *testing.T) {
	// Prague to Brno is roughly 184 km as the crow flies.
	prague := Coordinates{Latitude: 50.0755, Longitude: 14.4378}
	brno := Coordinates{Latitude: 49.1951, Longitude: 16.6068}

	d := Distance(prague, brno)
	if d < 180000 || d > 190000 {
		t.Errorf("expected ~184 km, got %f m", d)
	}
}

func TestDistance_ShortRange(t *testing.T) {
	// Two points ~111 m apart along a meridian (0.001 degrees of latitude).
	a := Coordinates{Latitude: 50.0, Longitude: 14.0}
	b := Coordinates{Latitude: 50.001, Longitude: 14.0}

	d := Distance(a, b)
	if d < 110 || d > 112 {
		t.Errorf("expected ~111 m, got %f m", d)
	}
}

func TestVerify_BoundaryIsWithinRange(t *testing.T) {
	center := Coordinates{Latitude: 50.0, Longitude: 14.0}
	point := Coordinates{Latitude: 50.0008, Longitude: 14.0}

	// Use the computed distance itself as the radius so the point sits
	// exactly on the boundary.
	radius := Distance(point, center)

	res := Verify(point, center, radius)
	if !res.WithinRange {
		t.Errorf("point exactly on the boundary must be within range (distance %f)", res.DistanceMeters)
	}

	res = Verify(point, center, radius-0.000001)
	if res.WithinRange {
		t.Error("point just beyond the radius must be out of range")
	}
}

func TestVerify_StudentNearVenue(t *testing.T) {
	// Student ~85 m from the venue center with a 100 m radius.
	center := Coordinates{Latitude: 50.0, Longitude: 14.0}
	point := Coordinates{Latitude: 50.0 + 85.0/EarthRadiusMeters*180/math.Pi, Longitude: 14.0}

	res := Verify(point, center, 100)
	if !res.WithinRange {
		t.Errorf("expected within range, distance %f", res.DistanceMeters)
	}
	if math.Abs(res.DistanceMeters-85) > 0.5 {
		t.Errorf("expected distance ~85 m, got %f", res.DistanceMeters)
	}
}

func TestVerify_OutOfRange(t *testing.T) {
	center := Coordinates{Latitude: 50.0, Longitude: 14.0}
	point := Coordinates{Latitude: 50.01, Longitude: 14.0} // ~1.1 km away

	res := Verify(point, center, 200)
	if res.WithinRange {
		t.Errorf("expected out of range at %f m", res.DistanceMeters)
	}
}
