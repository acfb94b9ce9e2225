package config

import (
	"testing"
	"time"
)

func TestMergeFromEnv(t *testing.T) {
	t.Setenv(EnvProgressPeriod, "3")
	t.Setenv(EnvResizeRatio, "8")
	t.Setenv(EnvCRF, "28")
	t.Setenv(EnvFPS, "25")
	t.Setenv(EnvWorkers, "5")
	t.Setenv(EnvDays, "7")
	t.Setenv(EnvOutput, "week.mp4")
	t.Setenv(EnvLookahead, "-1")
	t.Setenv(EnvSink, "mjpeg")
	t.Setenv(EnvFont, "")

	cfg := DefaultConfig()
	if err := cfg.MergeFromEnv(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.ProgressPeriod != 3*time.Second {
		t.Errorf("Expected progress period 3s, got %s", cfg.ProgressPeriod)
	}
	if cfg.ResizeRatio != 8 {
		t.Errorf("Expected resize ratio 8, got %d", cfg.ResizeRatio)
	}
	if cfg.Encoder.CRF != 28 {
		t.Errorf("Expected CRF 28, got %d", cfg.Encoder.CRF)
	}
	if cfg.FPS != 25 {
		t.Errorf("Expected fps 25, got %d", cfg.FPS)
	}
	if cfg.Workers != 5 {
		t.Errorf("Expected workers 5, got %d", cfg.Workers)
	}
	if cfg.Days != 7 {
		t.Errorf("Expected days 7, got %d", cfg.Days)
	}
	if cfg.Output != "week.mp4" {
		t.Errorf("Expected output 'week.mp4', got %s", cfg.Output)
	}
	if cfg.Lookahead != -1 {
		t.Errorf("Expected lookahead -1, got %d", cfg.Lookahead)
	}
	if cfg.Encoder.Sink != "mjpeg" {
		t.Errorf("Expected sink 'mjpeg', got %s", cfg.Encoder.Sink)
	}
	if cfg.FontPath != "" {
		t.Errorf("Expected empty font to be ignored, got %s", cfg.FontPath)
	}
}

func TestMergeFromEnv_InvalidValues(t *testing.T) {
	env := map[string]string{
		EnvFPS:         "fast",
		EnvResizeRatio: "4x",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	err := cfg.mergeFromLookup(lookup)
	if err == nil {
		t.Fatal("Expected error for non-integer values")
	}
	if cfg.FPS != 10 {
		t.Errorf("Expected fps to stay at default, got %d", cfg.FPS)
	}
}

func TestMergeFromEnv_Unset(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.mergeFromLookup(func(string) (string, bool) { return "", false }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Error("Expected config to be unchanged")
	}
}
