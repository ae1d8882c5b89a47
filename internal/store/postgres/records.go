package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// AttendanceRepository provides PostgreSQL-backed attendance record storage.
// Idempotency lives here, not in any pre-check: the unique constraint on
// (session_id, owner_id) resolves concurrent submissions deterministically.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Insert stores a record. A duplicate (session, owner) pair returns
// attendance.ErrAlreadyMarked; the existing record is never overwritten.
func (r *AttendanceRepository) Insert(ctx context.Context, rec *attendance.Record) error {
	query := `
		INSERT INTO attendance_records
			(session_id, owner_id, marked_at, method, confidence_percent, location_verified, location_distance_m)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		rec.SessionID, rec.OwnerID, rec.MarkedAt, rec.Method,
		rec.ConfidencePercent, rec.LocationVerified, rec.LocationDistanceMeters,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.ErrAlreadyMarked
		}
		return fmt.Errorf("%w: %v", attendance.ErrPersistence, err)
	}
	return nil
}

// Has checks whether a record already exists for the pair. This is the cheap
// pre-check that spares users the camera flow; the constraint in Insert is
// the actual guarantee.
func (r *AttendanceRepository) Has(ctx context.Context, sessionID uuid.UUID, ownerID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance_records WHERE session_id = $1 AND owner_id = $2)",
		sessionID, ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return exists, nil
}

// ListBySession returns all records for a session ordered by marking time.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]attendance.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, owner_id, marked_at, method, confidence_percent, location_verified, location_distance_m
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.OwnerID, &rec.MarkedAt, &rec.Method,
			&rec.ConfidencePercent, &rec.LocationVerified, &rec.LocationDistanceMeters,
		); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}
