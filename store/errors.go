package store

import "errors"

var (
	// ErrNotFound indicates the object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrNoCopyResult indicates a copy returned no result to confirm it by.
	ErrNoCopyResult = errors.New("copy returned no result")
)

// Error wraps a failed store operation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
