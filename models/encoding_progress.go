package models

import (
	"fmt"
	"time"
)

// EncodingProgress represents encoder-side metrics parsed from ffmpeg stats.
type EncodingProgress struct {
	Frame       int64   // Frames written by the encoder so far
	FPS         float64 // Encoder throughput
	CurrentTime string  // Output timestamp (HH:MM:SS.MS)

	Bitrate string  // e.g. "128.0kbits/s"
	Speed   float64 // Multiple of realtime
	Size    string  // e.g. "1024kB"

	TotalFrames int64   // Expected frame count, 0 when unknown
	Progress    float64 // Percentage complete (0-100)

	State     ProgressState
	StartTime time.Time
	UpdatedAt time.Time
}

// ProgressState represents the current state of the encoder.
type ProgressState string

const (
	ProgressStateQueued    ProgressState = "queued"
	ProgressStateStarting  ProgressState = "starting"
	ProgressStateEncoding  ProgressState = "encoding"
	ProgressStateCompleted ProgressState = "completed"
	ProgressStateFailed    ProgressState = "failed"
	ProgressStateCancelled ProgressState = "cancelled"
)

// EncoderStatsCallback receives encoder stats as ffmpeg reports them.
type EncoderStatsCallback func(progress *EncodingProgress)

// NewEncodingProgress creates a new encoder stats tracker.
func NewEncodingProgress(totalFrames int64) *EncodingProgress {
	return &EncodingProgress{
		TotalFrames: totalFrames,
		State:       ProgressStateQueued,
		StartTime:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// CalculateProgress updates the percentage from the current frame count.
func (ep *EncodingProgress) CalculateProgress(frame int64) {
	if ep.TotalFrames > 0 {
		ep.Progress = float64(frame) / float64(ep.TotalFrames) * 100
		if ep.Progress > 100 {
			ep.Progress = 100
		}
	}
	ep.UpdatedAt = time.Now()
}

// FormatSummary returns a one-line summary suitable for debug logs.
func (ep *EncodingProgress) FormatSummary() string {
	return fmt.Sprintf(
		"frame=%d fps=%.1f speed=%.2fx bitrate=%s size=%s",
		ep.Frame,
		ep.FPS,
		ep.Speed,
		ep.Bitrate,
		ep.Size,
	)
}
