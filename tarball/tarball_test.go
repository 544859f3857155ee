package tarball

import (
	"archive/tar"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/randalmurphal/ingestflow/testutil"
)

func files(n int, prefix string) []Member {
	members := make([]Member, n)
	for i := range members {
		members[i] = Member{Path: fmt.Sprintf("%sfile%03d", prefix, i), Regular: true}
	}
	return members
}

func TestSummarize_FullListing(t *testing.T) {
	members := []Member{
		{Path: "b.txt", Regular: true},
		{Path: "a", Dir: true},
	}

	got := Summarize(members, "https://s3/bucket/x.tar.gz")
	want := "Total number of items in the tarball: 2\n" +
		"URL to the tarball: https://s3/bucket/x.tar.gz\n" +
		"Full listing of the contents of the tarball:\n" +
		"```\na\nb.txt\n```"
	if got != want {
		t.Errorf("Summarize =\n%s\nwant\n%s", got, want)
	}
}

func TestSummarize_Threshold(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{99, "Full listing of the contents of the tarball:"},
		{100, "Summarized overview of the contents of the tarball:"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := Summarize(files(tt.n, "root/"), "url")
			if !strings.Contains(got, tt.want) {
				t.Errorf("%d members: missing %q", tt.n, tt.want)
			}
		})
	}
}

func TestSummarize_Groups(t *testing.T) {
	const p = "2023.06/software/linux/x86_64/generic/"
	members := []Member{
		{Path: p + "software", Dir: true},
		{Path: p + "software/GCC", Dir: true},
		{Path: p + "software/GCC/12.3.0", Dir: true},
		{Path: p + "software/GCC/12.3.0/bin/gcc", Regular: true},
		{Path: p + "modules/all/GCC/12.3.0.lua", Regular: true},
		{Path: p + "modules/all/GCC/notes.txt", Regular: true},
		{Path: p + "init.sh", Regular: true},
	}
	for i := 0; len(members) < SummaryThreshold; i++ {
		members = append(members, Member{Path: fmt.Sprintf("%ssoftware/GCC/12.3.0/lib/f%03d", p, i), Regular: true})
	}

	got := Summarize(members, "url")
	listing := got[strings.Index(got, "```\n")+4 : strings.LastIndex(got, "\n```")]
	want := []string{
		p + "init.sh",
		p + "modules/all/GCC/12.3.0.lua",
		p + "software",
		p + "software/GCC/12.3.0",
	}
	if listing != strings.Join(want, "\n") {
		t.Errorf("listing =\n%s\nwant\n%s", listing, strings.Join(want, "\n"))
	}
	if !strings.HasPrefix(got, fmt.Sprintf("Total number of items in the tarball: %d", len(members))) {
		t.Errorf("header = %q", got[:50])
	}
}

func TestSummarize_Truncates(t *testing.T) {
	members := files(50, strings.Repeat("x", 2000)+"/")

	got := Summarize(members, "url")
	if len(got) != MaxOverviewLength+len(truncationNotice) {
		t.Errorf("len = %d, want %d", len(got), MaxOverviewLength+len(truncationNotice))
	}
	if !strings.HasSuffix(got, truncationNotice) {
		t.Error("missing truncation notice")
	}
}

func TestSummarize_LimitCountsCharacters(t *testing.T) {
	// 40 paths of 1000 two-byte characters: about 40,000 characters but
	// 80,000 bytes, so nothing may be cut.
	members := files(40, strings.Repeat("é", 1000)+"/")

	got := Summarize(members, "url")
	if strings.HasSuffix(got, truncationNotice) {
		t.Fatalf("overview of %d characters was truncated", utf8.RuneCountInString(got))
	}
	if !strings.Contains(got, members[39].Path) {
		t.Error("last member missing from overview")
	}
}

func TestSummarize_TruncatesOnCharacterBoundary(t *testing.T) {
	members := files(50, strings.Repeat("é", 2000)+"/")

	got := Summarize(members, "url")
	if !utf8.ValidString(got) {
		t.Fatal("truncated overview is not valid UTF-8")
	}
	body := strings.TrimSuffix(got, truncationNotice)
	if body == got {
		t.Fatal("missing truncation notice")
	}
	if n := utf8.RuneCountInString(body); n != MaxOverviewLength {
		t.Errorf("kept %d characters, want %d", n, MaxOverviewLength)
	}
}

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{nil, ""},
		{[]string{"a/b/c"}, "a/b/c"},
		{[]string{"a/b/software", "a/b/modules"}, "a/b/"},
		{[]string{"a/zen2", "a/zen3"}, "a/zen"},
		{[]string{"x", "y"}, ""},
		{[]string{"a/é", "a/è"}, "a/"},
	}
	for _, tt := range tests {
		if got := CommonPrefix(tt.paths); got != tt.want {
			t.Errorf("CommonPrefix(%v) = %q, want %q", tt.paths, got, tt.want)
		}
	}
}

func TestMembers_Gzip(t *testing.T) {
	path := testutil.WriteTarGz(t, t.TempDir(), "x.tar.gz", []testutil.Entry{
		{Name: "v1/", Dir: true},
		{Name: "v1/a.txt", Body: "a"},
	})

	members, err := Members(path)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 2 || members[0].Path != "v1" || !members[0].Dir || !members[1].Regular {
		t.Errorf("members = %+v", members)
	}

	prefix, err := Prefix(path)
	if err != nil || prefix != "v1" {
		t.Errorf("Prefix = %q, %v", prefix, err)
	}
}

func TestMembers_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tar.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(enc)
	if err := tw.WriteHeader(&tar.Header{Name: "only.txt", Mode: 0o644, Size: 2, Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	tw.Write([]byte("hi"))
	tw.Close()
	enc.Close()
	f.Close()

	members, err := Members(path)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 1 || members[0].Path != "only.txt" {
		t.Errorf("members = %+v", members)
	}
}

func TestMembers_Xz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tar.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	if err := tw.WriteHeader(&tar.Header{Name: "v2/", Mode: 0o755, Typeflag: tar.TypeDir}); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "v2/b.txt", Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	tw.Write([]byte("b"))
	tw.Close()
	xw.Close()
	f.Close()

	members, err := Members(path)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 2 || members[0].Path != "v2" || !members[1].Regular {
		t.Errorf("members = %+v", members)
	}
}

func TestMembers_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	os.WriteFile(path, []byte(strings.Repeat("junk", 200)), 0o644)

	if _, err := Members(path); err == nil {
		t.Error("expected error for non-archive input")
	}
}

func TestSHA256File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte("hello"), 0o644)

	got, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}

	ok, _, err := VerifySHA256(path, strings.ToUpper(want)+"\n")
	if err != nil || !ok {
		t.Errorf("VerifySHA256 = %v, %v", ok, err)
	}
	ok, _, _ = VerifySHA256(path, want[:63]+"5")
	if ok {
		t.Error("VerifySHA256 accepted a digest differing in the last character")
	}
	if got := NormalizeDigest("  ABCdef\n"); got != "abcdef" {
		t.Errorf("NormalizeDigest = %q", got)
	}
	ok, actual, _ := VerifySHA256(path, "deadbeef")
	if ok || actual != want {
		t.Errorf("VerifySHA256 mismatch = %v, %s", ok, actual)
	}

	if _, err := SHA256File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
