package tarball

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// SHA256File returns the lowercase hex SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 reports whether the file at path has the declared digest.
// The declared value is normalised to lowercase hex without surrounding
// whitespace; after that the digests must be identical.
func VerifySHA256(path, declared string) (bool, string, error) {
	actual, err := SHA256File(path)
	if err != nil {
		return false, "", err
	}
	return actual == NormalizeDigest(declared), actual, nil
}

// NormalizeDigest trims whitespace from a hex digest and lowercases it.
func NormalizeDigest(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
