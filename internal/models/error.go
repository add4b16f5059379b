package models

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when an operation references an account
// that does not exist in the store.
var ErrAccountNotFound = errors.New("account not found")

// StorageError wraps a persistence failure: the store was unreachable,
// timed out, or returned an unexpected shape. It is always surfaced to
// the caller; retry policy belongs to the caller, not this subsystem.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err with the name of the failing operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// ConfigError reports an invalid policy or connection parameter at
// startup. It is fatal: the subsystem refuses to initialize rather than
// run with protection silently disabled.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
