package store

import "errors"

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is applied to a
	// delivery whose status does not permit it, e.g. requeueing a
	// delivery that is not dead-lettered.
	ErrInvalidState = errors.New("invalid state for operation")
)
