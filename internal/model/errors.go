package model

import "errors"

var (
	// ErrNotFound is returned when a session id is unknown.
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when a session is not in a state that allows the operation.
	ErrNotReady = errors.New("session not ready")
	// ErrInvalidArgument is returned for malformed or out-of-range input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when the operation was already performed.
	ErrConflict = errors.New("conflict")
)
