package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [owner-id] [image-file]",
	Short: "Enroll a face profile from an image file",
	Long: `Extract a face embedding from the given image and store it as the
owner's enrolled profile. Re-enrolling an existing owner overwrites the
stored profile. Warns when the new embedding is suspiciously close to a
different owner's.`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Display name for the profile")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ownerID, imagePath := args[0], args[1]
	name := mustGetString(cmd, "name")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	frame, err := capture.NormalizeFrame(raw, cfg.Detector.MaxFrameSize)
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	ctx := context.Background()
	detector := capture.NewClient(cfg.Detector.URL, cfg.Detector.Dim)
	det, err := detector.DetectFace(ctx, frame)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	if det == nil {
		return fmt.Errorf("no face detected in %s", imagePath)
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()
	profiles := postgres.NewProfileRepository(pool)

	index := buildProfileIndex(ctx, profiles)
	if owner, dist, ok := index.Nearest(det.Embedding, ownerID); ok && dist < cfg.Verification.MatchThreshold {
		fmt.Printf("Warning: embedding is %.3f from existing profile %s\n", dist, owner)
	}

	profile := &attendance.EnrolledProfile{
		OwnerID:    ownerID,
		Name:       name,
		Embedding:  det.Embedding,
		Dim:        len(det.Embedding),
		EnrolledAt: time.Now().UTC(),
	}
	if err := profiles.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	fmt.Printf("Enrolled %s (%d-dim embedding, detection score %.2f)\n", ownerID, profile.Dim, det.Score)
	return nil
}
