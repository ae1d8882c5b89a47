package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
	"github.com/kozaktomas/face-attend/internal/verify"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage attendance sessions",
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an attendance session with a generated code",
	RunE:  runSessionsCreate,
}

var sessionsAttendanceCmd = &cobra.Command{
	Use:   "attendance [session-id]",
	Short: "List attendance records for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsAttendance,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsAttendanceCmd)

	sessionsCreateCmd.Flags().String("title", "", "Session title (required)")
	sessionsCreateCmd.Flags().Int("expires-in", 0, "Minutes until the session expires (0 = never)")
	sessionsCreateCmd.Flags().Float64("lat", 0, "Geofence center latitude")
	sessionsCreateCmd.Flags().Float64("lon", 0, "Geofence center longitude")
	sessionsCreateCmd.Flags().Float64("radius", 0, "Geofence radius in meters (0 = no geofence)")
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	title := mustGetString(cmd, "title")
	if title == "" {
		return errors.New("--title is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	session := &attendance.Session{
		ID:        uuid.New(),
		Title:     title,
		Status:    attendance.SessionStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if minutes := mustGetInt(cmd, "expires-in"); minutes > 0 {
		expiresAt := session.CreatedAt.Add(time.Duration(minutes) * time.Minute)
		session.ExpiresAt = &expiresAt
	}
	if radius := mustGetFloat64(cmd, "radius"); radius > 0 {
		session.Geofence = &attendance.Geofence{
			Latitude:     mustGetFloat64(cmd, "lat"),
			Longitude:    mustGetFloat64(cmd, "lon"),
			RadiusMeters: radius,
		}
	}

	session.Code, err = verify.GenerateCode()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := postgres.NewSessionRepository(pool).Create(context.Background(), session); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Printf("Session created\n")
	fmt.Printf("  ID:    %s\n", session.ID)
	fmt.Printf("  Code:  %s\n", session.Code)
	if session.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", session.ExpiresAt.Format(time.RFC3339))
	}
	if session.Geofence != nil {
		fmt.Printf("  Geofence: %.5f,%.5f r=%.0fm\n",
			session.Geofence.Latitude, session.Geofence.Longitude, session.Geofence.RadiusMeters)
	}
	return nil
}

func runSessionsAttendance(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

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

	recs, err := postgres.NewAttendanceRepository(pool).ListBySession(context.Background(), id)
	if err != nil {
		return fmt.Errorf("listing attendance: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tMARKED AT\tCONFIDENCE\tLOCATION")
	for _, rec := range recs {
		location := "-"
		if rec.LocationVerified && rec.LocationDistanceMeters != nil {
			location = fmt.Sprintf("%.0fm", *rec.LocationDistanceMeters)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\n",
			rec.OwnerID, rec.MarkedAt.Format(time.RFC3339), rec.ConfidencePercent, location)
	}
	w.Flush()
	fmt.Printf("\n%d records\n", len(recs))
	return nil
}
