package dao

import "errors"

// Common, reusable store errors. Sentinel variables allow callers to detect
// conditions via errors.Is instead of brittle string comparisons.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to store a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
