package tarball

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Member is one entry of an archive.
type Member struct {
	Path    string // slash-separated, no trailing slash
	Dir     bool
	Regular bool
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Members lists every entry in the archive at path. Compression is
// detected from the leading bytes: gzip, zstd, bzip2, xz or none.
func Members(path string) ([]Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var members []Member
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		members = append(members, Member{
			Path:    strings.TrimRight(hdr.Name, "/"),
			Dir:     hdr.Typeflag == tar.TypeDir,
			Regular: hdr.Typeflag == tar.TypeReg || hdr.Typeflag == tar.TypeRegA, //nolint:staticcheck // old archives still use TypeRegA
		})
	}
	return members, nil
}

func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	head, _ := br.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("xz reader: %w", err)
		}
		return xr, func() {}, nil
	case bytes.HasPrefix(head, bzip2Magic):
		return bzip2.NewReader(br), func() {}, nil
	default:
		return br, func() {}, nil
	}
}

// Paths returns the member paths, sorted.
func Paths(members []Member) []string {
	paths := make([]string, len(members))
	for i, m := range members {
		paths[i] = m.Path
	}
	sort.Strings(paths)
	return paths
}

// CommonPrefix returns the longest string every path starts with. It is
// character-wise, so it may end in the middle of a path segment but never
// in the middle of a multi-byte character.
func CommonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, prefix) {
			_, size := utf8.DecodeLastRuneInString(prefix)
			prefix = prefix[:len(prefix)-size]
		}
		if prefix == "" {
			break
		}
	}
	return prefix
}

// Prefix returns the common prefix of the archive at path.
func Prefix(path string) (string, error) {
	members, err := Members(path)
	if err != nil {
		return "", err
	}
	return CommonPrefix(Paths(members)), nil
}
