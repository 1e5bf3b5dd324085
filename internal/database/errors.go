package database

import "errors"

// ErrNotFound is returned when an identity does not exist.
var ErrNotFound = errors.New("not found")

// StorageError wraps an I/O failure of a store or ledger backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage marks err as a storage failure of the given operation.
// Nil errors and errors that already carry a StorageError pass through unchanged.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
