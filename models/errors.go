package models

import "errors"

// Pipeline error taxonomy. Every error returned by the pipeline wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	ErrNoMatchingInputs   = errors.New("photos not found")
	ErrMalformedInputName = errors.New("malformed input name")
	ErrWorkerFailure      = errors.New("worker failure")
	ErrGeometryMismatch   = errors.New("geometry mismatch")
	ErrSinkIO             = errors.New("sink i/o failure")
)
