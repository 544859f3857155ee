package lifecycle

import (
	"errors"
	"fmt"
)

// Lifecycle errors
var (
	// ErrIncomplete indicates the record lacks a downloaded file or a
	// metadata field the handler needs.
	ErrIncomplete = errors.New("record is incomplete")

	// ErrNoComment indicates no annotation comment could be found on the
	// sponsoring request.
	ErrNoComment = errors.New("no comment found for tarball")

	// ErrUnknownState indicates a state outside the lifecycle.
	ErrUnknownState = errors.New("unknown state")
)

// ETagMismatchError reports a copy whose ETag differs from the one recorded
// when the source was listed. The source object is left in place.
type ETagMismatchError struct {
	Src, Dst         string
	Listed, Returned string
}

func (e *ETagMismatchError) Error() string {
	return fmt.Sprintf("copy %s -> %s: etag mismatch (listed %s, copy %s)", e.Src, e.Dst, e.Listed, e.Returned)
}

// Consistency marks the error as a disagreement between the two systems of record.
func (e *ETagMismatchError) Consistency() bool { return true }

// CopyUnverifiedError reports a copy that returned nothing to confirm it by.
type CopyUnverifiedError struct {
	Src, Dst string
	Err      error
}

func (e *CopyUnverifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("copy %s -> %s unverified: %v", e.Src, e.Dst, e.Err)
	}
	return fmt.Sprintf("copy %s -> %s unverified", e.Src, e.Dst)
}

func (e *CopyUnverifiedError) Unwrap() error { return e.Err }

// Consistency marks the error as a disagreement between the two systems of record.
func (e *CopyUnverifiedError) Consistency() bool { return true }

// ChecksumMismatchError reports a payload whose digest differs from the
// one declared in its metadata.
type ChecksumMismatchError struct {
	Key              string
	Declared, Actual string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum of %s is %s, metadata declares %s", e.Key, e.Actual, e.Declared)
}

// Consistency marks the error as a disagreement between the two systems of record.
func (e *ChecksumMismatchError) Consistency() bool { return true }

// Sentinels for errors.Is matching against the typed consistency errors.
var (
	ErrETagMismatch     = errors.New("etag mismatch")
	ErrCopyUnverified   = errors.New("copy unverified")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

func (e *ETagMismatchError) Is(target error) bool     { return target == ErrETagMismatch }
func (e *CopyUnverifiedError) Is(target error) bool   { return target == ErrCopyUnverified }
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }
