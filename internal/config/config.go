// Package config loads service configuration from the environment and the
// verification thresholds from an embedded defaults file, optionally
// overridden by an external file and per-value environment variables.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-attend/internal/liveness"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Detector     DetectorConfig
	Roster       RosterConfig
	Verification VerificationConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type DetectorConfig struct {
	URL          string // face detection server, defaults to http://localhost:8000
	Dim          int    // embedding dimension, defaults to 512
	MaxFrameSize int    // frames are downscaled to this before upload (default 640)
}

type RosterConfig struct {
	DSN   string // legacy MariaDB roster DSN (optional)
	Table string // roster table name (default "students")
}

// VerificationConfig is the tunable surface of the verification pipeline.
// None of these require a redeploy to change.
type VerificationConfig struct {
	Liveness        liveness.Config `yaml:"liveness"`
	MatchThreshold  float64         `yaml:"match_threshold"`
	LivenessRetries int             `yaml:"liveness_retries"`
	MatchRetries    int             `yaml:"match_retries"`
	NoFaceRetries   int             `yaml:"no_face_retries"`
	GeofenceRetries int             `yaml:"geofence_retries"`
	// ExpiryCheck is how often mid-flow attempts recheck the session's
	// expiry clock. Not in the yaml surface; override via
	// EXPIRY_CHECK_INTERVAL_MS.
	ExpiryCheck time.Duration `yaml:"-"`
	// RecordTimeout bounds the persistence write. Override via
	// RECORD_TIMEOUT_MS.
	RecordTimeout time.Duration `yaml:"-"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func getenvDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// loadThresholds parses the embedded defaults, layers an optional external
// file on top, then applies environment overrides.
func loadThresholds() (VerificationConfig, error) {
	var v VerificationConfig
	if err := yaml.Unmarshal(thresholdsYAML, &v); err != nil {
		// Embedded file, so this should never happen in practice.
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	if path := os.Getenv("THRESHOLDS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return v, fmt.Errorf("read thresholds file: %w", err)
		}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return v, fmt.Errorf("parse thresholds file %s: %w", path, err)
		}
	}

	v.Liveness.BlinkVarianceThreshold = envFloat("BLINK_VARIANCE_THRESHOLD", v.Liveness.BlinkVarianceThreshold)
	v.Liveness.MovementThreshold = envFloat("MOVEMENT_THRESHOLD", v.Liveness.MovementThreshold)
	v.Liveness.MaxTicks = envInt("MAX_LIVENESS_TICKS", v.Liveness.MaxTicks)
	v.MatchThreshold = envFloat("MATCH_THRESHOLD", v.MatchThreshold)

	v.ExpiryCheck = time.Duration(envInt("EXPIRY_CHECK_INTERVAL_MS", 1000)) * time.Millisecond
	v.RecordTimeout = time.Duration(envInt("RECORD_TIMEOUT_MS", 10000)) * time.Millisecond
	return v, nil
}

// Load builds the full configuration from the environment.
func Load() (*Config, error) {
	verification, err := loadThresholds()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host: getenvDefault("HOST", "0.0.0.0"),
			Port: envInt("PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Detector: DetectorConfig{
			URL:          os.Getenv("DETECTOR_URL"),
			Dim:          envInt("DETECTOR_DIM", 512),
			MaxFrameSize: envInt("DETECTOR_MAX_FRAME_SIZE", 640),
		},
		Roster: RosterConfig{
			DSN:   os.Getenv("ROSTER_DSN"),
			Table: getenvDefault("ROSTER_TABLE", "students"),
		},
		Verification: verification,
	}, nil
}
