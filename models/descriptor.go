// Package models provides core data structures for the timelapse pipeline.
package models

import (
	"fmt"
	"strings"
	"time"
)

// InputDescriptor identifies one source photograph and its place in the
// output sequence.
//
// Index is assigned by ascending Timestamp (ties keep listing order) and is
// the only ordering key used after listing. Descriptors are never mutated
// once the ordered list is built.
type InputDescriptor struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Index     int       `json:"index"`
}

// TransformParams holds the per-item parameters handed to a worker.
type TransformParams struct {
	ScaleRatio  int    `json:"scale_ratio"`
	OverlayText string `json:"overlay_text"`
}

// WorkItem is a descriptor paired with its transform parameters.
// Each WorkItem is consumed by exactly one worker.
type WorkItem struct {
	Descriptor InputDescriptor `json:"descriptor"`
	Params     TransformParams `json:"params"`
}

// Index returns the sequence index of the underlying descriptor.
func (w WorkItem) Index() int {
	return w.Descriptor.Index
}

// NewWorkItem creates a WorkItem with validation.
//
// Returns an error if:
//   - Path is empty or whitespace-only
//   - Index is negative
//   - ScaleRatio is less than 1
//
// Example:
//
//	item, err := models.NewWorkItem(desc, 4, "000 2024/01/02 03:04:05")
func NewWorkItem(desc InputDescriptor, scaleRatio int, overlayText string) (WorkItem, error) {
	item := WorkItem{
		Descriptor: desc,
		Params: TransformParams{
			ScaleRatio:  scaleRatio,
			OverlayText: overlayText,
		},
	}
	if err := item.Validate(); err != nil {
		return WorkItem{}, fmt.Errorf("invalid work item: %w", err)
	}
	return item, nil
}

// Validate checks if the WorkItem has valid data.
func (w WorkItem) Validate() error {
	if strings.TrimSpace(w.Descriptor.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if w.Descriptor.Index < 0 {
		return fmt.Errorf("index cannot be negative")
	}
	if w.Params.ScaleRatio < 1 {
		return fmt.Errorf("scale_ratio must be at least 1")
	}
	return nil
}
