package errors

import (
	"errors"
	"strings"
)

// Lower-case fragments the AWS, GitHub, GitLab and git clients put in
// their error text. Several of these services only expose a status code or
// an error code string, so matching on the message is the common ground.
var (
	authMarkers       = []string{"unauthenticated", "unauthorized", "bad credentials", "invalidaccesskeyid", "signaturedoesnotmatch", "401"}
	permissionMarkers = []string{"permission denied", "forbidden", "accessdenied", "403"}
	dialMarkers       = []string{"connection refused", "no such host", "network is unreachable", "dial tcp"}
	tlsMarkers        = []string{"certificate", "tls", "x509"}
	timeoutMarkers    = []string{"timeout", "deadline exceeded"}
)

func mentions(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err means the credentials were rejected.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || mentions(err, authMarkers)
}

// IsConnectionError reports whether err is a network, TLS or timeout
// failure.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed) ||
		mentions(err, dialMarkers) ||
		mentions(err, tlsMarkers) ||
		mentions(err, timeoutMarkers)
}

// IsPermissionError reports whether err means the credentials lack access.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || mentions(err, permissionMarkers)
}

// consistency is implemented by errors that mean the two systems of record
// disagree and the artifact must not advance.
type consistency interface {
	Consistency() bool
}

// IsConsistencyError reports whether err, or an error it wraps, is a
// consistency violation.
func IsConsistencyError(err error) bool {
	var c consistency
	return errors.As(err, &c) && c.Consistency()
}
