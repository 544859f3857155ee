// Package testutil provides fixtures for tests: temporary git repositories
// with bare remotes, tarball builders and metadata documents.
package testutil

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Entry describes one member of a generated tarball.
type Entry struct {
	Name string
	Dir  bool
	Body string
}

// WriteTarGz writes a gzip-compressed tarball with entries to dir/name and
// returns its path.
func WriteTarGz(t *testing.T, dir, name string, entries []Entry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Size: int64(len(e.Body)), Typeflag: tar.TypeReg}
		if e.Dir {
			hdr = &tar.Header{Name: e.Name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.Name, err)
		}
		if !e.Dir {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return path
}

// SHA256 returns the hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReadFile reads path or fails the test.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// Metadata builds the JSON document an uploader stores next to a tarball.
func Metadata(t *testing.T, filename, checksum string, size int64, repo string, pr int, commentID int64) []byte {
	t.Helper()

	link := map[string]any{"repo": repo, "pr": pr}
	if commentID > 0 {
		link["pr_comment_id"] = commentID
	}
	doc := map[string]any{
		"uploader": map[string]any{"username": "uploader"},
		"payload":  map[string]any{"filename": filename, "size": size, "sha256sum": checksum},
		"link2pr":  link,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return data
}
