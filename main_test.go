package main

import (
	"testing"

	"timelapse/sink"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		kind sink.Kind
		want string
	}{
		{"ffmpeg keeps mp4", "day.mp4", sink.KindFFmpeg, "day.mp4"},
		{"mjpeg swaps extension", "day.mp4", sink.KindMJPEG, "day.avi"},
		{"mjpeg keeps avi", "/tmp/day.AVI", sink.KindMJPEG, "/tmp/day.AVI"},
		{"mjpeg without extension", "day", sink.KindMJPEG, "day.avi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(tt.path, tt.kind); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLookaheadLabel(t *testing.T) {
	if got := lookaheadLabel(-1); got != "unbounded" {
		t.Errorf("Expected 'unbounded', got %q", got)
	}
	if got := lookaheadLabel(6); got != "6" {
		t.Errorf("Expected '6', got %q", got)
	}
}
