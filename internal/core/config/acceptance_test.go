package config

import (
	"testing"
)

// TestAcceptanceCriteria covers the configuration guarantees the CLI relies on.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("config file with hmac_secret rejected with clear error", func(t *testing.T) {
		path := writeConfig(t, `server:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`)

		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use MS_HMAC_SECRET environment variable)" {
			t.Fatalf("wrong error message: %v", err)
		}
	})

	t.Run("secret in environment accepted", func(t *testing.T) {
		t.Setenv("MS_HMAC_SECRET", testSecret)
		path := writeConfig(t, `server:
  port: 8080
`)
		if _, err := LoadConfig(path); err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		path := writeConfig(t, `scoring:
  threshold_delete: 3
`)
		t.Setenv("MS_SCORING_THRESHOLD_DELETE", "7")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Scoring.ThresholdDelete != 7 {
			t.Fatalf("expected threshold_delete 7 from environment, got %d", cfg.Scoring.ThresholdDelete)
		}
	})

	t.Run("thresholds independently optional", func(t *testing.T) {
		path := writeConfig(t, `scoring:
  threshold_flag: 80
`)

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Scoring.ThresholdFlag != 80 {
			t.Errorf("expected threshold_flag 80, got %d", cfg.Scoring.ThresholdFlag)
		}
		if cfg.Scoring.ThresholdDelete != -1 || cfg.Scoring.ThresholdRead != -1 {
			t.Errorf("unset thresholds changed: delete=%d read=%d", cfg.Scoring.ThresholdDelete, cfg.Scoring.ThresholdRead)
		}
	})

	t.Run("missing config file reported", func(t *testing.T) {
		if _, err := LoadConfig(t.TempDir() + "/absent.yaml"); err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}
