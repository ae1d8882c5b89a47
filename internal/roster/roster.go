// Package roster reads student identities from the legacy MariaDB roster so
// deployments migrating off the old attendance system do not retype their
// student lists.
package roster

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Client reads the legacy roster database.
type Client struct {
	db    *sql.DB
	table string
}

// Connect opens the legacy roster database. dsn is a MySQL DSN like
// "user:pass@tcp(host:3306)/legacy".
func Connect(dsn, table string) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("roster DSN is required")
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid roster table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping roster database: %w", err)
	}

	return &Client{db: db, table: table}, nil
}

// Close closes the roster connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// ListStudents reads all roster entries. Names are normalized so lookups and
// exports behave the same regardless of the legacy system's encoding habits.
func (c *Client) ListStudents(ctx context.Context) ([]attendance.Student, error) {
	// table is validated against tableNameRe at connect time.
	query := fmt.Sprintf("SELECT owner_id, name FROM %s ORDER BY owner_id", c.table)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var students []attendance.Student
	for rows.Next() {
		var s attendance.Student
		if err := rows.Scan(&s.OwnerID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		s.Name = NormalizeName(s.Name)
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return students, nil
}
