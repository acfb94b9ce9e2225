package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir changes the working directory for the duration of the test,
// restoring the previous one on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// clearEnv hides any TIMELAPSE_* variables of the host from LoadConfig.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvProgressPeriod, EnvResizeRatio, EnvCRF, EnvFPS, EnvWorkers,
		EnvDays, EnvOutput, EnvLookahead, EnvSink, EnvFont,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_AllLayersPriority(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "timelapse.yaml")
	photos := t.TempDir()

	// File sets days, fps, crf and workers
	configContent := `days: 3
fps: 15
workers: 4
resize_ratio: 2
encoder:
  crf: 30
  preset: fast
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	// Environment overrides fps and crf
	t.Setenv(EnvFPS, "20")
	t.Setenv(EnvCRF, "26")

	// CLI overrides crf and workers
	os.Args = []string{
		"timelapse",
		"-config", configPath,
		"-crf", "18",
		"-workers", "8",
		photos,
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Input != photos {
		t.Errorf("Expected input '%s', got '%s'", photos, cfg.Input)
	}
	// CLI > env > file
	if cfg.Encoder.CRF != 18 {
		t.Errorf("Expected CRF 18 (from CLI), got %d", cfg.Encoder.CRF)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected workers 8 (from CLI), got %d", cfg.Workers)
	}
	// env > file
	if cfg.FPS != 20 {
		t.Errorf("Expected fps 20 (from env), got %d", cfg.FPS)
	}
	// file > defaults
	if cfg.Days != 3 {
		t.Errorf("Expected days 3 (from file), got %d", cfg.Days)
	}
	if cfg.ResizeRatio != 2 {
		t.Errorf("Expected resize ratio 2 (from file), got %d", cfg.ResizeRatio)
	}
	if cfg.Encoder.Preset != "fast" {
		t.Errorf("Expected preset 'fast' (from file), got '%s'", cfg.Encoder.Preset)
	}
	// defaults
	if cfg.ProgressPeriod != time.Second {
		t.Errorf("Expected default progress period, got %s", cfg.ProgressPeriod)
	}
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	photos := t.TempDir()

	os.Args = []string{"timelapse", photos}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Days != defaults.Days {
		t.Errorf("Expected default days %d, got %d", defaults.Days, cfg.Days)
	}
	if cfg.Output != defaults.Output {
		t.Errorf("Expected default output '%s', got '%s'", defaults.Output, cfg.Output)
	}
	if cfg.Workers < 1 {
		t.Errorf("Expected auto-detected workers, got %d", cfg.Workers)
	}
}

func TestLoadConfig_ValidationError(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	os.Args = []string{"timelapse", "-fps", "0", filepath.Join(t.TempDir(), "missing")}

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestLoadConfig_BadConfigFile(t *testing.T) {
	clearEnv(t)
	os.Args = []string{"timelapse", "-config", "/nonexistent/timelapse.yaml", t.TempDir()}

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvWorkers, "lots")

	os.Args = []string{"timelapse", t.TempDir()}

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for invalid environment value")
	}
}
