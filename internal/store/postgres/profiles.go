package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// ProfileRepository provides PostgreSQL-backed enrolled profile storage with
// the embedding held in a pgvector column.
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Upsert stores an enrolled profile. Re-enrollment overwrites the previous
// embedding.
func (r *ProfileRepository) Upsert(ctx context.Context, p *attendance.EnrolledProfile) error {
	query := `
		INSERT INTO profiles (owner_id, name, embedding, dim, enrolled_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			enrolled_at = EXCLUDED.enrolled_at
	`

	_, err := r.pool.Exec(ctx, query,
		p.OwnerID, p.Name, pgvector.NewVector(p.Embedding), p.Dim, p.EnrolledAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Get retrieves an enrolled profile by owner ID.
func (r *ProfileRepository) Get(ctx context.Context, ownerID string) (*attendance.EnrolledProfile, error) {
	query := `
		SELECT owner_id, name, embedding, dim, enrolled_at
		FROM profiles
		WHERE owner_id = $1
	`

	var p attendance.EnrolledProfile
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(
		&p.OwnerID, &p.Name, &vec, &p.Dim, &p.EnrolledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p.Embedding = vec.Slice()
	return &p, nil
}

// List returns all enrolled profiles, used to build the in-memory nearest
// neighbor index on startup.
func (r *ProfileRepository) List(ctx context.Context) ([]attendance.EnrolledProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT owner_id, name, embedding, dim, enrolled_at FROM profiles
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []attendance.EnrolledProfile
	for rows.Next() {
		var p attendance.EnrolledProfile
		var vec pgvector.Vector
		if err := rows.Scan(&p.OwnerID, &p.Name, &vec, &p.Dim, &p.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Embedding = vec.Slice()
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}
