package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique secondary index already maps
	// the key to a different record.
	ErrDuplicate = errors.New("persistence: duplicate key")
	// ErrCorruptRecord is returned when a stored blob fails to decode or a
	// secondary index points at a missing primary record.
	ErrCorruptRecord = errors.New("persistence: corrupt record")
)
