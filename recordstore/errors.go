package recordstore

import "errors"

var (
	// ErrNotInitialized is returned when the store file does not exist.
	ErrNotInitialized = errors.New("store not initialized")
	// ErrCorrupt is returned when the store file cannot be decoded or fails schema checks.
	ErrCorrupt = errors.New("store corrupt")
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when creating a key or a store that already exists.
	ErrAlreadyExists = errors.New("already exists")
)
