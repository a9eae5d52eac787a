// Package storage provides the persistence backends for studies: an
// in-memory store for tests and embedding, and a JSON file store with
// atomic writes for durable sessions.
package storage

import (
	"errors"
	"fmt"
)

// ErrDirectionMismatch marks an attempt to reopen a study under a different
// optimization direction than it was created with
var ErrDirectionMismatch = errors.New("study direction mismatch")

// StorageError wraps a persistence failure with the operation and study it
// occurred on
type StorageError struct {
	Op    string
	Study string
	Err   error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s study %q: %v", e.Op, e.Study, e.Err)
}

// Unwrap returns the underlying cause
func (e *StorageError) Unwrap() error {
	return e.Err
}
