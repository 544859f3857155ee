// Package tarball inspects payload archives: digest computation, member
// listing across gzip, zstd and bzip2 compression, and the human-readable
// contents overview attached to review requests.
package tarball
