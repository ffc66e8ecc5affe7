package database

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable matches every backend failure via errors.Is.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError records which operation failed and the driver error behind it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
