package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attend",
	Short: "Face-verified attendance service",
	Long: `Face Attend verifies that a physically present, live student matches an
enrolled face profile and records an idempotent attendance event. It runs
as an HTTP service (serve) and ships CLI commands for enrollment, roster
import and session management.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
