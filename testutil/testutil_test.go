package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupTestRepo(t *testing.T) {
	dir := SetupTestRepo(t)

	if _, err := os.Stat(filepath.Join(dir, ".git")); os.IsNotExist(err) {
		t.Error(".git directory does not exist")
	}
	if sha := GetHeadSHA(t, dir); len(sha) != 40 {
		t.Errorf("SHA length = %d, want 40", len(sha))
	}
	if !BranchExists(t, dir, "main") {
		t.Error("main branch missing")
	}
}

func TestSetupRemote(t *testing.T) {
	remote, clone := SetupRemote(t)

	CommitFile(t, clone, "staged/a.txt", "a", "add a")
	if _, err := runGit(clone, "push", "origin", "main"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if !FileOnBranch(t, remote, "main", "staged/a.txt") {
		t.Error("pushed file not found on remote main")
	}
	if FileOnBranch(t, remote, "main", "staged/b.txt") {
		t.Error("unexpected file on remote main")
	}
}

func TestWriteTarGz(t *testing.T) {
	path := WriteTarGz(t, t.TempDir(), "x.tar.gz", []Entry{
		{Name: "a/", Dir: true},
		{Name: "a/b.txt", Body: "hello"},
	})
	data := ReadFile(t, path)
	if len(data) == 0 {
		t.Fatal("empty tarball")
	}
	if len(SHA256(data)) != 64 {
		t.Error("digest should be 64 hex chars")
	}
}

func TestMetadata(t *testing.T) {
	raw := Metadata(t, "x.tar.gz", "abc", 10, "org/repo", 4, 99)

	var doc struct {
		Link struct {
			Repo      string `json:"repo"`
			PR        int    `json:"pr"`
			CommentID int64  `json:"pr_comment_id"`
		} `json:"link2pr"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Link.Repo != "org/repo" || doc.Link.PR != 4 || doc.Link.CommentID != 99 {
		t.Errorf("link2pr = %+v", doc.Link)
	}
}
