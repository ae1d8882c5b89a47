package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Apply the Face Attend PostgreSQL schema: sessions, enrolled profiles
(pgvector embedding column sized to the detector dimension), attendance
records with the (session_id, owner_id) uniqueness constraint, and the
student roster.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(context.Background(), cfg.Detector.Dim); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Printf("Schema ready (embedding dimension %d)\n", cfg.Detector.Dim)
	return nil
}
