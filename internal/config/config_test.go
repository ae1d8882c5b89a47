package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	v := cfg.Verification
	if v.Liveness.BlinkVarianceThreshold != 0.02 {
		t.Errorf("expected blink threshold 0.02, got %f", v.Liveness.BlinkVarianceThreshold)
	}
	if v.Liveness.MovementThreshold != 0.15 {
		t.Errorf("expected movement threshold 0.15, got %f", v.Liveness.MovementThreshold)
	}
	if v.Liveness.MaxTicks != 60 {
		t.Errorf("expected 60 max ticks, got %d", v.Liveness.MaxTicks)
	}
	if v.MatchThreshold != 0.4 {
		t.Errorf("expected match threshold 0.4, got %f", v.MatchThreshold)
	}
	if v.ExpiryCheck != time.Second {
		t.Errorf("expected 1s expiry check interval, got %s", v.ExpiryCheck)
	}
}

func TestLoad_EnvOverridesThresholds(t *testing.T) {
	t.Setenv("BLINK_VARIANCE_THRESHOLD", "0.05")
	t.Setenv("MATCH_THRESHOLD", "0.3")
	t.Setenv("MAX_LIVENESS_TICKS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Verification.Liveness.BlinkVarianceThreshold != 0.05 {
		t.Errorf("env override not applied: %f", cfg.Verification.Liveness.BlinkVarianceThreshold)
	}
	if cfg.Verification.MatchThreshold != 0.3 {
		t.Errorf("env override not applied: %f", cfg.Verification.MatchThreshold)
	}
	if cfg.Verification.Liveness.MaxTicks != 90 {
		t.Errorf("env override not applied: %d", cfg.Verification.Liveness.MaxTicks)
	}
}

func TestLoad_ThresholdsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := []byte("match_threshold: 0.25\nliveness:\n  max_ticks: 45\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write thresholds file: %v", err)
	}
	t.Setenv("THRESHOLDS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Verification.MatchThreshold != 0.25 {
		t.Errorf("file override not applied: %f", cfg.Verification.MatchThreshold)
	}
	if cfg.Verification.Liveness.MaxTicks != 45 {
		t.Errorf("file override not applied: %d", cfg.Verification.Liveness.MaxTicks)
	}
	// Values absent from the file keep their embedded defaults.
	if cfg.Verification.Liveness.MovementThreshold != 0.15 {
		t.Errorf("unrelated default clobbered: %f", cfg.Verification.Liveness.MovementThreshold)
	}
}

func TestLoad_InvalidThresholdsFile(t *testing.T) {
	t.Setenv("THRESHOLDS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing thresholds file")
	}
}
