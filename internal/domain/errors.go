package domain

import (
	"errors"
	"fmt"
)

var (
	// Engine errors
	ErrUnknownTypeCode = errors.New("unknown accounting type code")
	ErrInvalidLimit    = errors.New("limit must be a non-negative integer")
	ErrInvalidAmount   = errors.New("amount must not be negative")

	// Storage errors
	ErrStorageFailure = errors.New("storage failure")
)

// StorageError wraps an error returned by a backing store.
// It matches ErrStorageFailure with errors.Is and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is nil or already a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *StorageError
	if errors.As(err, &se) {
		return err
	}

	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}
