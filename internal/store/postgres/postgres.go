// Package postgres implements the store repositories on PostgreSQL with
// pgvector for embedding columns.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/face-attend/internal/config"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Exec runs a statement against the pool.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// QueryRow runs a single-row query against the pool.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query runs a multi-row query against the pool.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Migrate creates the schema. The embedding column dimension is fixed per
// deployment, so the DDL is rendered with the configured dimension.
func (p *Pool) Migrate(ctx context.Context, embeddingDim int) error {
	if _, err := p.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createSessions := `
		CREATE TABLE IF NOT EXISTS sessions (
			id           UUID PRIMARY KEY,
			code         VARCHAR(10) NOT NULL UNIQUE,
			title        VARCHAR(255) NOT NULL DEFAULT '',
			expires_at   TIMESTAMP WITH TIME ZONE,
			geo_lat      DOUBLE PRECISION,
			geo_lon      DOUBLE PRECISION,
			geo_radius_m DOUBLE PRECISION,
			status       VARCHAR(16) NOT NULL,
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := p.Exec(ctx, createSessions); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	createProfiles := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS profiles (
			owner_id     VARCHAR(255) PRIMARY KEY,
			name         VARCHAR(255) NOT NULL DEFAULT '',
			embedding    vector(%d) NOT NULL,
			dim          INTEGER NOT NULL,
			enrolled_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, embeddingDim)
	if _, err := p.Exec(ctx, createProfiles); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	// The UNIQUE constraint is the idempotency guarantee for attendance:
	// concurrent submissions for the same (session, owner) race here and
	// exactly one wins.
	createRecords := `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id                  BIGSERIAL PRIMARY KEY,
			session_id          UUID NOT NULL REFERENCES sessions(id),
			owner_id            VARCHAR(255) NOT NULL,
			marked_at           TIMESTAMP WITH TIME ZONE NOT NULL,
			method              VARCHAR(16) NOT NULL,
			confidence_percent  DOUBLE PRECISION NOT NULL,
			location_verified   BOOLEAN NOT NULL DEFAULT FALSE,
			location_distance_m DOUBLE PRECISION,
			UNIQUE(session_id, owner_id)
		)
	`
	if _, err := p.Exec(ctx, createRecords); err != nil {
		return fmt.Errorf("failed to create attendance_records table: %w", err)
	}

	if _, err := p.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS attendance_records_session_idx ON attendance_records(session_id)
	`); err != nil {
		return fmt.Errorf("failed to create attendance session index: %w", err)
	}

	createStudents := `
		CREATE TABLE IF NOT EXISTS students (
			owner_id   VARCHAR(255) PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	if _, err := p.Exec(ctx, createStudents); err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	return nil
}
