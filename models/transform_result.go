package models

import (
	"fmt"
	"image"
)

// TransformResult is the outcome of transforming a single WorkItem.
//
// A successful result carries the final frame and no error; a failed result
// carries the cause and no frame. Ownership moves from the worker to the
// coordinator when the result is posted.
//
// Use NewTransformSuccess or NewTransformFailure to create validated instances.
type TransformResult struct {
	Index int
	Frame *image.NRGBA
	Err   error
}

// NewTransformSuccess creates a successful TransformResult with validation.
//
// Returns an error if frame is nil or has an empty bounding box.
func NewTransformSuccess(index int, frame *image.NRGBA) (TransformResult, error) {
	r := TransformResult{Index: index, Frame: frame}
	if err := r.Validate(); err != nil {
		return TransformResult{}, fmt.Errorf("invalid transform result: %w", err)
	}
	return r, nil
}

// NewTransformFailure creates a failed TransformResult. A nil cause is replaced
// by a generic error so that the result still reads as a failure.
func NewTransformFailure(index int, cause error) TransformResult {
	if cause == nil {
		cause = fmt.Errorf("transform failed without a cause")
	}
	return TransformResult{Index: index, Err: cause}
}

// Failed reports whether the result carries an error.
func (r TransformResult) Failed() bool {
	return r.Err != nil
}

// Size returns the frame dimensions, or zero for a failed result.
func (r TransformResult) Size() (int, int) {
	if r.Frame == nil {
		return 0, 0
	}
	b := r.Frame.Bounds()
	return b.Dx(), b.Dy()
}

// Validate checks if the TransformResult has consistent state.
//
// Returns an error if:
//   - Index is negative
//   - Err is set and a frame is also present
//   - Err is nil and there is no frame (or the frame is empty)
func (r TransformResult) Validate() error {
	if r.Index < 0 {
		return fmt.Errorf("index cannot be negative")
	}

	if r.Err != nil {
		if r.Frame != nil {
			return fmt.Errorf("inconsistent state: failed result carries a frame")
		}
		return nil
	}

	if r.Frame == nil {
		return fmt.Errorf("successful result must have a frame")
	}
	if r.Frame.Bounds().Empty() {
		return fmt.Errorf("frame cannot be empty")
	}

	return nil
}
