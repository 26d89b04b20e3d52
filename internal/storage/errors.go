package storage

import "errors"

// Sentinel errors shared by every store implementation. Callers match
// them with errors.Is regardless of the backing database.
var (
	// ErrNotFound reports that no record matched the lookup key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey reports an insert whose key is already present.
	// Records are immutable once written, so there is no upsert path.
	ErrDuplicateKey = errors.New("duplicate key: records are immutable once written")

	// ErrInvalidInput reports a record that failed validation before any
	// write was attempted.
	ErrInvalidInput = errors.New("invalid input")
)
