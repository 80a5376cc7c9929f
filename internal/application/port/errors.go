package port

import "errors"

var (
	// ErrNotFound is returned when a row does not exist or has been tombstoned
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a compare-and-set update loses the race
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate key")
)
