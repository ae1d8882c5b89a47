// Package memory provides in-memory implementations of the store
// repositories for tests and local development. The attendance store
// reproduces the database's uniqueness semantics so idempotency behaves the
// same in both backends.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// SessionRepository is an in-memory session store.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*attendance.Session
	byCode   map[string]uuid.UUID

	// Error injection.
	GetError error
}

// NewSessionRepository creates an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[uuid.UUID]*attendance.Session),
		byCode:   make(map[string]uuid.UUID),
	}
}

func (r *SessionRepository) Create(ctx context.Context, s *attendance.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	r.byCode[s.Code] = s.ID
	return nil
}

func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*attendance.Session, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, attendance.ErrSessionNotFound
	}
	cp := *r.sessions[id]
	return &cp, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*attendance.Session, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, attendance.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return attendance.ErrSessionNotFound
	}
	s.Status = attendance.SessionStatusClosed
	return nil
}

// ProfileRepository is an in-memory enrolled profile store.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*attendance.EnrolledProfile

	// Error injection.
	GetError error
}

// NewProfileRepository creates an empty in-memory profile store.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]*attendance.EnrolledProfile)}
}

func (r *ProfileRepository) Upsert(ctx context.Context, p *attendance.EnrolledProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.profiles[p.OwnerID] = &cp
	return nil
}

func (r *ProfileRepository) Get(ctx context.Context, ownerID string) (*attendance.EnrolledProfile, error) {
	if r.GetError != nil {
		return nil, r.GetError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[ownerID]
	if !ok {
		return nil, attendance.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]attendance.EnrolledProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]attendance.EnrolledProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	return out, nil
}

type recordKey struct {
	sessionID uuid.UUID
	ownerID   string
}

// AttendanceRepository is an in-memory attendance store with the same
// first-writer-wins semantics as the PostgreSQL unique constraint.
type AttendanceRepository struct {
	mu      sync.Mutex
	records map[recordKey]*attendance.Record
	nextID  int64

	// Error injection. InsertErrors is consumed one entry per Insert call,
	// which lets tests simulate a transient failure followed by success.
	InsertErrors []error
}

// NewAttendanceRepository creates an empty in-memory attendance store.
func NewAttendanceRepository() *AttendanceRepository {
	return &AttendanceRepository{records: make(map[recordKey]*attendance.Record)}
}

func (r *AttendanceRepository) Insert(ctx context.Context, rec *attendance.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.InsertErrors) > 0 {
		err := r.InsertErrors[0]
		r.InsertErrors = r.InsertErrors[1:]
		if err != nil {
			return err
		}
	}

	key := recordKey{sessionID: rec.SessionID, ownerID: rec.OwnerID}
	if _, exists := r.records[key]; exists {
		return attendance.ErrAlreadyMarked
	}

	r.nextID++
	rec.ID = r.nextID
	cp := *rec
	r.records[key] = &cp
	return nil
}

func (r *AttendanceRepository) Has(ctx context.Context, sessionID uuid.UUID, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[recordKey{sessionID: sessionID, ownerID: ownerID}]
	return ok, nil
}

func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]attendance.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []attendance.Record
	for key, rec := range r.records {
		if key.sessionID == sessionID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// StudentRepository is an in-memory roster store.
type StudentRepository struct {
	mu       sync.RWMutex
	students map[string]*attendance.Student
}

// NewStudentRepository creates an empty in-memory roster store.
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{students: make(map[string]*attendance.Student)}
}

func (r *StudentRepository) Upsert(ctx context.Context, s *attendance.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.students[s.OwnerID] = &cp
	return nil
}

func (r *StudentRepository) Get(ctx context.Context, ownerID string) (*attendance.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.students[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}
