// Package store is the object-store side of the ingestion lifecycle: it
// lists metadata objects by state prefix, downloads payloads, and copies
// and deletes objects with ETag confirmation.
package store

import (
	"context"
	"strings"
	"time"
)

// Object is one listed object.
type Object struct {
	Key          string
	ETag         string
	Size         int64
	LastModified time.Time
}

// Store is the subset of object-store operations the lifecycle needs.
type Store interface {
	// List returns every object under prefix, across all result pages.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Download writes the object at key to path, replacing any existing file.
	Download(ctx context.Context, key, path string) error
	// Copy duplicates src to dst and returns the ETag reported for the copy.
	Copy(ctx context.Context, src, dst string) (string, error)
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns a human-facing location for key.
	URL(key string) string
}

// NormalizeETag strips the quotes S3 wraps around ETag values.
func NormalizeETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}

// SameETag compares two ETags ignoring quoting. Empty values never match.
func SameETag(a, b string) bool {
	a, b = NormalizeETag(a), NormalizeETag(b)
	return a != "" && a == b
}
