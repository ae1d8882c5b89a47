package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/roster"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
)

var importRosterCmd = &cobra.Command{
	Use:   "import-roster",
	Short: "Import the student roster from a legacy MariaDB database",
	Long: `Read student identities from the legacy MariaDB roster (ROSTER_DSN,
ROSTER_TABLE), normalize display names and store them in PostgreSQL.
Existing students are updated in place.`,
	RunE: runImportRoster,
}

func init() {
	rootCmd.AddCommand(importRosterCmd)
}

func runImportRoster(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Roster.DSN == "" {
		return errors.New("ROSTER_DSN environment variable is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	legacy, err := roster.Connect(cfg.Roster.DSN, cfg.Roster.Table)
	if err != nil {
		return fmt.Errorf("connecting to roster database: %w", err)
	}
	defer legacy.Close()

	ctx := context.Background()
	students, err := legacy.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}
	fmt.Printf("Students to import: %d\n\n", len(students))

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()
	repo := postgres.NewStudentRepository(pool)

	bar := progressbar.NewOptions(len(students),
		progressbar.OptionSetDescription("Importing roster"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var imported, failed int
	for i := range students {
		if err := repo.Upsert(ctx, &students[i]); err != nil {
			failed++
			fmt.Printf("\nWarning: failed to import %s: %v\n", students[i].OwnerID, err)
		} else {
			imported++
		}
		bar.Add(1)
	}

	fmt.Printf("\n\nImported %d students (%d failed)\n", imported, failed)
	return nil
}
