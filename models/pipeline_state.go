package models

import (
	"fmt"
	"time"
)

// ProgressCallback receives the completion percentage of a run, in [0, 100].
// It is called from the coordinator goroutine and must return quickly.
type ProgressCallback func(percent float64)

// PipelineState is the coordinator's bookkeeping for one run.
// It is owned by the coordinator goroutine and never touched by workers.
type PipelineState struct {
	Cursor       int       // Next index the sink expects
	Completed    int       // Results received, in any order
	Total        int       // N
	Buffered     int       // Results currently waiting in the reorder buffer
	BufferedPeak int       // Largest Buffered value observed
	LastProgress time.Time // When progress was last emitted
	LastPercent  float64   // Last emitted percentage
	StartTime    time.Time
	Failure      error
}

// NewPipelineState creates state for a run over total items.
func NewPipelineState(total int) *PipelineState {
	now := time.Now()
	return &PipelineState{
		Total:        total,
		LastProgress: now,
		StartTime:    now,
	}
}

// Percent returns completed work as a percentage of the total, capped at 100.
// Completed work, not released work, is what counts.
func (s *PipelineState) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Completed) * 100 / float64(s.Total)
	if p > 100 {
		p = 100
	}
	return p
}

// Done reports whether every item has been released to the sink.
func (s *PipelineState) Done() bool {
	return s.Cursor >= s.Total
}

// ObserveBuffered records the current reorder buffer size.
func (s *PipelineState) ObserveBuffered(n int) {
	s.Buffered = n
	if n > s.BufferedPeak {
		s.BufferedPeak = n
	}
}

// EstimatedTimeRemaining extrapolates from completed work so far.
func (s *PipelineState) EstimatedTimeRemaining() time.Duration {
	if s.Completed <= 0 || s.Total <= 0 {
		return 0
	}

	elapsed := time.Since(s.StartTime)
	totalEstimated := time.Duration(float64(elapsed) * float64(s.Total) / float64(s.Completed))
	remaining := totalEstimated - elapsed

	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatSummary returns a human-readable summary of the run so far.
func (s *PipelineState) FormatSummary() string {
	return fmt.Sprintf(
		"Progress: %.0f%% | Completed: %d/%d | Released: %d | Buffered: %d (peak %d) | ETA: %s",
		s.Percent(),
		s.Completed,
		s.Total,
		s.Cursor,
		s.Buffered,
		s.BufferedPeak,
		formatDuration(s.EstimatedTimeRemaining()),
	)
}

// formatDuration converts a duration to a human-readable string
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "calculating..."
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
