// Package store persists sessions, enrolled face profiles and attendance
// records. The PostgreSQL implementation is the production backend; the
// in-memory implementation backs tests and local development.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// SessionRepository stores attendance sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *attendance.Session) error
	// GetByCode looks up a session by its normalized code. Returns
	// attendance.ErrSessionNotFound when no session carries the code.
	GetByCode(ctx context.Context, code string) (*attendance.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*attendance.Session, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// ProfileRepository stores enrolled face profiles, one per identity.
type ProfileRepository interface {
	// Upsert stores a profile, overwriting any previous enrollment.
	Upsert(ctx context.Context, p *attendance.EnrolledProfile) error
	// Get returns attendance.ErrProfileNotFound when the identity has no
	// enrollment.
	Get(ctx context.Context, ownerID string) (*attendance.EnrolledProfile, error)
	List(ctx context.Context) ([]attendance.EnrolledProfile, error)
}

// AttendanceRepository stores verified attendance records. The
// (session, owner) pair is unique; Insert reports a duplicate as
// attendance.ErrAlreadyMarked regardless of which writer got there first.
type AttendanceRepository interface {
	Insert(ctx context.Context, r *attendance.Record) error
	Has(ctx context.Context, sessionID uuid.UUID, ownerID string) (bool, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]attendance.Record, error)
}

// StudentRepository stores roster entries imported from the legacy system.
type StudentRepository interface {
	Upsert(ctx context.Context, s *attendance.Student) error
	Get(ctx context.Context, ownerID string) (*attendance.Student, error)
}
