package store

import "errors"

var (
	// ErrNotFound is returned by mutating operations on a missing row.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition rejects a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusChanged means another writer moved the meeting on first.
	ErrStatusChanged = errors.New("meeting status changed")
)
