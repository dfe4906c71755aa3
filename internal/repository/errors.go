package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
	ErrAlreadyExists = errors.New("repository: already exists")
)
