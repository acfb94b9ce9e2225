package logging

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		debugActive bool
	}{
		{"production", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.verbose)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("Expected logger, got nil")
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugActive {
				t.Errorf("Expected debug enabled %v, got %v", tt.debugActive, got)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	if a == b {
		t.Errorf("Expected distinct run ids, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("Expected a valid uuid, got %q: %v", a, err)
	}
}

func TestWithRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := WithRun(zap.New(core), "run-123")

	logger.Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["run_id"]; got != "run-123" {
		t.Errorf("Expected run_id run-123, got %v", got)
	}

	// A nil logger must not panic.
	WithRun(nil, "x").Info("dropped")
}
