package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// SessionRepository provides PostgreSQL-backed session storage.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session. A code collision surfaces as an error so the
// caller can roll a fresh code.
func (r *SessionRepository) Create(ctx context.Context, s *attendance.Session) error {
	query := `
		INSERT INTO sessions (id, code, title, expires_at, geo_lat, geo_lon, geo_radius_m, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var lat, lon, radius sql.NullFloat64
	if s.Geofence != nil {
		lat = sql.NullFloat64{Float64: s.Geofence.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: s.Geofence.Longitude, Valid: true}
		radius = sql.NullFloat64{Float64: s.Geofence.RadiusMeters, Valid: true}
	}

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Code, s.Title, s.ExpiresAt, lat, lon, radius, s.Status, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session code %s already in use: %w", s.Code, err)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByCode retrieves a session by its normalized code.
func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*attendance.Session, error) {
	return r.get(ctx, "code = $1", code)
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*attendance.Session, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *SessionRepository) get(ctx context.Context, where string, arg any) (*attendance.Session, error) {
	query := `
		SELECT id, code, title, expires_at, geo_lat, geo_lon, geo_radius_m, status, created_at
		FROM sessions
		WHERE ` + where

	var s attendance.Session
	var lat, lon, radius sql.NullFloat64
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.Code, &s.Title, &s.ExpiresAt, &lat, &lon, &radius, &s.Status, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	if lat.Valid && lon.Valid && radius.Valid {
		s.Geofence = &attendance.Geofence{
			Latitude:     lat.Float64,
			Longitude:    lon.Float64,
			RadiusMeters: radius.Float64,
		}
	}
	return &s, nil
}

// Close marks a session closed. Closed sessions reject further verification
// attempts.
func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID) error {
	res, err := r.pool.Exec(ctx,
		"UPDATE sessions SET status = $1 WHERE id = $2", attendance.SessionStatusClosed, id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrSessionNotFound
	}
	return nil
}
