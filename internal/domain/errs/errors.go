// Package errs holds the sentinel errors shared across layers.
package errs

import "errors"

var (
	// ErrNotFound is returned when a notification is not in the active set.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when a producer passes a malformed notification or settings patch.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when an operation does not apply to the entity,
	// e.g. invoking the action of a notification that has none.
	ErrInvalidState = errors.New("invalid state")

	// ErrClosed is returned by producers after the queue has been torn down.
	ErrClosed = errors.New("queue closed")
)
