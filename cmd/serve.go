package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/capture"
	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/metrics"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
	"github.com/kozaktomas/face-attend/internal/verify"
	"github.com/kozaktomas/face-attend/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance verification server",
	Long: `Start the Face Attend HTTP server.
The server exposes the verification pipeline, instructor session management
and enrollment under /api/v1, plus Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// buildProfileIndex loads all enrolled profiles into the in-memory index
// used for duplicate-enrollment checks.
func buildProfileIndex(ctx context.Context, profiles *postgres.ProfileRepository) *store.ProfileIndex {
	index := store.NewProfileIndex()
	all, err := profiles.List(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to load profiles for the index: %v\n", err)
		return index
	}
	index.Build(all)
	fmt.Printf("Profile index built with %d enrolled profiles\n", index.Count())
	return index
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	sessions := postgres.NewSessionRepository(pool)
	profiles := postgres.NewProfileRepository(pool)
	records := postgres.NewAttendanceRepository(pool)

	ctx := context.Background()
	index := buildProfileIndex(ctx, profiles)

	detector := capture.NewClient(cfg.Detector.URL, cfg.Detector.Dim)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	orch := verify.New(sessions, profiles, records, detector, cfg.Verification, m)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, web.Deps{
		Orchestrator: orch,
		Sessions:     sessions,
		Profiles:     profiles,
		Records:      records,
		Detector:     detector,
		Index:        index,
		Registry:     registry,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attend on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
