package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("persistence: write in read-only unit of work")
)
