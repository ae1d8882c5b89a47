// Package geo verifies that a verification attempt originates inside a
// session's geofence. Pure math over supplied coordinates; coordinate
// acquisition is the caller's problem.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result is the outcome of a geofence check.
type Result struct {
	DistanceMeters float64 `json:"distance_meters"`
	WithinRange    bool    `json:"within_range"`
}

// Distance computes the haversine great-circle distance between two points in
// meters. Stable for distances from zero to tens of kilometers.
func Distance(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Verify checks whether point lies within radiusMeters of center. A point
// exactly on the boundary counts as within range.
func Verify(point, center Coordinates, radiusMeters float64) Result {
	d := Distance(point, center)
	return Result{
		DistanceMeters: d,
		WithinRange:    d <= radiusMeters,
	}
}
