package errors

import "errors"

// Startup errors with actionable guidance.
var (
	// ErrConfig indicates the configuration is missing, unreadable or incomplete.
	ErrConfig = errors.New("configuration error")

	// ErrLocked indicates another run holds the lock.
	ErrLocked = errors.New("another run is in progress")

	// ErrNotAuthenticated indicates the credentials were rejected.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrConnectionFailed indicates a service is unreachable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = errors.New("permission denied")
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitLocked  = 3
)

// ExitCode maps an error returned by the CLI to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrLocked):
		return ExitLocked
	default:
		return ExitFailure
	}
}
