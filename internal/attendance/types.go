// Package attendance defines the domain model for face-verified attendance:
// sessions, enrolled face profiles, attendance records and the typed failures
// the verification pipeline produces.
package attendance

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an attendance session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Geofence is a circular boundary attached to a session. Verification
// attempts must originate from inside it.
type Geofence struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Session is one live attendance-taking event, identified to students by a
// short shared code. Sessions are created by instructors and are read-only to
// the verification pipeline.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	Code      string        `json:"code"`
	Title     string        `json:"title"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Geofence  *Geofence     `json:"geofence,omitempty"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Expired reports whether the session's expiry clock has run out. A session
// with no expiry never expires. The boundary is closed on the expired side:
// now == ExpiresAt counts as expired.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// EnrolledProfile is the stored face embedding for one identity. Immutable
// once enrolled; re-enrollment overwrites.
type EnrolledProfile struct {
	OwnerID    string
	Name       string
	Embedding  []float32
	Dim        int
	EnrolledAt time.Time
}

// MethodFace is the only verification method this core records.
const MethodFace = "face"

// Record is one stored attendance event. Exactly one record may exist per
// (SessionID, OwnerID) pair; the storage layer enforces this.
type Record struct {
	ID                     int64      `json:"id"`
	SessionID              uuid.UUID  `json:"session_id"`
	OwnerID                string     `json:"owner_id"`
	MarkedAt               time.Time  `json:"marked_at"`
	Method                 string     `json:"method"`
	ConfidencePercent      float64    `json:"confidence_percent"`
	LocationVerified       bool       `json:"location_verified"`
	LocationDistanceMeters *float64   `json:"location_distance_meters,omitempty"`
}

// Student is a roster entry: an identity that may or may not have an enrolled
// face profile yet. Populated by the roster import.
type Student struct {
	OwnerID   string
	Name      string
	CreatedAt time.Time
}
