// Package lock keeps ingestion runs from overlapping. A run that finds the
// lock held exits before touching the store or the review repository.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ingesterrors "github.com/randalmurphal/ingestflow/errors"
)

// Lock is a held run lock.
type Lock struct {
	path  string
	flock *flock.Flock
}

// Acquire takes the lock at path without waiting. A lock held by another
// process yields an error matching errors.ErrLocked.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, ingesterrors.NewLockedError(path)
	}
	return &Lock{path: path, flock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks. The lock file itself is left in place.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}
