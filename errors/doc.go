// Package errors provides ingestflow's CLI error taxonomy.
//
// Core types:
//   - CLIError: Wraps errors with message, suggestion, and details
//   - ErrorMessenger: Interface for customizing error messages
//
// Sentinel errors for startup failures:
//   - ErrConfig: Configuration missing or invalid (exit code 2)
//   - ErrLocked: Another run holds the lock (exit code 3)
//   - ErrNotAuthenticated, ErrPermissionDenied: Credentials rejected
//   - ErrConnectionFailed: A service is unreachable
//
// Per-artifact failures never reach the exit code; the run logs them and
// continues. IsConsistencyError picks out the ones where the object store
// and the review repository disagree.
//
// Example usage:
//
//	cfg, err := config.Load(path, nil)
//	if err != nil {
//	    return errors.NewConfigError(err)
//	}
//	...
//	os.Exit(errors.ExitCode(err))
package errors
