package errors

import (
	"fmt"
	"strings"
)

// CLIError is a startup failure printed to the operator: what went wrong,
// the underlying detail and what to do about it.
type CLIError struct {
	Err        error
	Message    string
	Suggestion string
	Details    string // optional
}

func (e *CLIError) Error() string {
	parts := []string{e.Message}
	if e.Details != "" {
		parts = append(parts, "\n", e.Details)
	}
	if e.Suggestion != "" {
		parts = append(parts, "\n\n", e.Suggestion)
	}
	return strings.Join(parts, "")
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger provides customizable error messages.
type ErrorMessenger interface {
	// AuthErrorMessage returns the message and suggestion for rejected credentials.
	AuthErrorMessage(service string) (message, suggestion string)

	// PermissionDeniedMessage returns the message and suggestion for permission errors.
	PermissionDeniedMessage(service string) (message, suggestion string)

	// ConnectionErrorMessage returns the message and suggestion for connection errors.
	ConnectionErrorMessage(serverURL string) (message, suggestion string)

	// TLSErrorMessage returns the message and suggestion for TLS/certificate errors.
	TLSErrorMessage(serverURL string) (message, suggestion string)

	// TimeoutErrorMessage returns the message and suggestion for timeout errors.
	TimeoutErrorMessage(serverURL string) (message, suggestion string)

	// ConfigErrorMessage returns the message and suggestion for configuration errors.
	ConfigErrorMessage() (message, suggestion string)

	// LockedMessage returns the message and suggestion when the lock is held.
	LockedMessage(lockPath string) (message, suggestion string)
}

// DefaultMessenger provides default error messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) AuthErrorMessage(service string) (string, string) {
	return fmt.Sprintf("%s rejected the configured credentials.", service),
		"Check the tokens in the [secrets] section of the configuration."
}

func (m DefaultMessenger) PermissionDeniedMessage(service string) (string, string) {
	return fmt.Sprintf("%s denied access.", service),
		"Check that the credentials have write access to the staging bucket and repository."
}

func (m DefaultMessenger) ConnectionErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Cannot connect to %s", serverURL),
		"Check that:\n  - The endpoint URL is correct\n  - Your network connection is working"
}

func (m DefaultMessenger) TLSErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to %s", serverURL),
		"Point aws.verify_cert_path at the CA bundle that signed the server certificate."
}

func (m DefaultMessenger) TimeoutErrorMessage(serverURL string) (string, string) {
	return fmt.Sprintf("Connection to %s timed out", serverURL),
		"The service may be overloaded or unreachable.\nThe next run will retry."
}

func (m DefaultMessenger) ConfigErrorMessage() (string, string) {
	return "The configuration is incomplete or invalid.",
		"Fix the configuration file or set the INGESTFLOW_<SECTION>_<KEY> environment variable."
}

func (m DefaultMessenger) LockedMessage(lockPath string) (string, string) {
	return "Another ingestion run is in progress.",
		fmt.Sprintf("Wait for it to finish; the lock file is %s.", lockPath)
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// WrapAuthError turns a rejected-credentials or access-denied failure
// from service into a CLIError. Other errors are returned unchanged.
func WrapAuthError(err error, service string, opts ...Option) error {
	messenger := getMessenger(opts)
	switch {
	case err == nil:
		return nil
	case mentions(err, authMarkers):
		msg, suggestion := messenger.AuthErrorMessage(service)
		return &CLIError{Err: ErrNotAuthenticated, Message: msg, Details: err.Error(), Suggestion: suggestion}
	case mentions(err, permissionMarkers):
		msg, suggestion := messenger.PermissionDeniedMessage(service)
		return &CLIError{Err: ErrPermissionDenied, Message: msg, Details: err.Error(), Suggestion: suggestion}
	}
	return err
}

// WrapConnectionError turns a dial, TLS or timeout failure talking to
// serverURL into a CLIError. Other errors are returned unchanged.
func WrapConnectionError(err error, serverURL string, opts ...Option) error {
	messenger := getMessenger(opts)
	switch {
	case err == nil:
		return nil
	case mentions(err, dialMarkers):
		msg, suggestion := messenger.ConnectionErrorMessage(serverURL)
		return &CLIError{Err: ErrConnectionFailed, Message: msg, Suggestion: suggestion}
	case mentions(err, tlsMarkers):
		msg, suggestion := messenger.TLSErrorMessage(serverURL)
		return &CLIError{Err: ErrConnectionFailed, Message: msg, Details: err.Error(), Suggestion: suggestion}
	case mentions(err, timeoutMarkers):
		msg, suggestion := messenger.TimeoutErrorMessage(serverURL)
		return &CLIError{Err: ErrConnectionFailed, Message: msg, Suggestion: suggestion}
	}
	return err
}

// NewConfigError wraps a configuration failure. The result matches ErrConfig
// as well as err.
func NewConfigError(err error, opts ...Option) error {
	messenger := getMessenger(opts)
	msg, suggestion := messenger.ConfigErrorMessage()
	return &CLIError{
		Err:        fmt.Errorf("%w: %w", ErrConfig, err),
		Message:    msg,
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}

// NewLockedError reports that lockPath is held by another process.
func NewLockedError(lockPath string, opts ...Option) error {
	messenger := getMessenger(opts)
	msg, suggestion := messenger.LockedMessage(lockPath)
	return &CLIError{
		Err:        ErrLocked,
		Message:    msg,
		Suggestion: suggestion,
	}
}
