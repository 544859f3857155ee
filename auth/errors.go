package auth

import "errors"

// Authentication errors.
var (
	// ErrInvalidKey indicates the app private key is missing or not a PEM RSA key.
	ErrInvalidKey = errors.New("invalid GitHub App private key")

	// ErrMissingAppID indicates no application ID was configured.
	ErrMissingAppID = errors.New("GitHub App ID is required")

	// ErrMissingInstallationID indicates no installation ID was configured.
	ErrMissingInstallationID = errors.New("GitHub App installation ID is required")
)
