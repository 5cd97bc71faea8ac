package domain

import "errors"

var (
	// ErrNotFound signals that a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals invalid input or state.
	ErrValidation = errors.New("validation error")
	// ErrConflict signals that an operation lost against the current state of
	// the record, e.g. cancelling an already-terminal notification.
	ErrConflict = errors.New("conflict")
)
