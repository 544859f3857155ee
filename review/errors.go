package review

import "errors"

// Review provider errors
var (
	// ErrExists indicates a pull request is already open for the branch.
	ErrExists = errors.New("pull request already exists for this branch")

	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoChanges indicates there are no changes between branches.
	ErrNoChanges = errors.New("no changes between branches")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown review provider")
)
