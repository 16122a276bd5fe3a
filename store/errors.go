package store

import "errors"

var (
	// ErrStoreNotFound is returned when no store exists for (owner, store id).
	ErrStoreNotFound = errors.New("stratum: store not found")

	// ErrRowNotFound is returned when a row doesn't exist within its store.
	ErrRowNotFound = errors.New("stratum: row not found")

	// ErrStoreExists is returned when creating a store with an id already in use.
	ErrStoreExists = errors.New("stratum: store already exists")

	// ErrRowExists is returned when creating a row under an id already in use.
	ErrRowExists = errors.New("stratum: row already exists")

	// ErrValidation wraps a schema.ValidationError rejected on the write path.
	ErrValidation = errors.New("stratum: validation failed")

	// ErrUnresolvedConflict is returned when a version set cannot be collapsed
	// because the store's sibling strategy declines to resolve.
	ErrUnresolvedConflict = errors.New("stratum: conflicting row versions")

	// ErrBadDefinition is returned when a store definition or update is invalid.
	ErrBadDefinition = errors.New("stratum: invalid store definition")
)
