package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located or is not visible to the caller.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
)
