package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// StudentRepository provides PostgreSQL-backed roster storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Upsert stores a roster entry, updating the name on re-import.
func (r *StudentRepository) Upsert(ctx context.Context, s *attendance.Student) error {
	query := `
		INSERT INTO students (owner_id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id) DO UPDATE SET name = EXCLUDED.name
	`
	if _, err := r.pool.Exec(ctx, query, s.OwnerID, s.Name, s.CreatedAt); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// Get retrieves a roster entry, returns nil when unknown.
func (r *StudentRepository) Get(ctx context.Context, ownerID string) (*attendance.Student, error) {
	var s attendance.Student
	err := r.pool.QueryRow(ctx,
		"SELECT owner_id, name, created_at FROM students WHERE owner_id = $1", ownerID,
	).Scan(&s.OwnerID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &s, nil
}
