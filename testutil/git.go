package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository on branch main with
// one initial commit. Returns the path to the repository.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	mustGit(t, dir, "init")
	mustGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	configureUser(t, dir)

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Staging Repository\n"), 0o644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "Initial commit")

	return dir
}

// SetupRemote creates a bare repository seeded with an initial commit on
// main, plus a working clone of it. Returns (remoteDir, cloneDir).
func SetupRemote(t *testing.T) (string, string) {
	t.Helper()

	seed := SetupTestRepo(t)
	remote := filepath.Join(t.TempDir(), "remote.git")
	mustGit(t, seed, "clone", "--bare", seed, remote)

	clone := filepath.Join(t.TempDir(), "staging")
	mustGit(t, filepath.Dir(clone), "clone", remote, clone)
	configureUser(t, clone)

	return remote, clone
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	mustGit(t, repoDir, "add", path)
	mustGit(t, repoDir, "commit", "-m", message)
}

// GetHeadSHA returns the SHA of ref (HEAD when empty).
func GetHeadSHA(t *testing.T, repoDir string) string {
	t.Helper()
	return RevParse(t, repoDir, "HEAD")
}

// RevParse resolves ref in repoDir.
func RevParse(t *testing.T, repoDir, ref string) string {
	t.Helper()
	return mustGit(t, repoDir, "rev-parse", ref)
}

// UpdateRef points ref at sha, e.g. to fake a hosted review-request ref
// like refs/pull/7/head inside a bare remote.
func UpdateRef(t *testing.T, repoDir, ref, sha string) {
	t.Helper()
	mustGit(t, repoDir, "update-ref", ref, sha)
}

// MergeBranch merges branch into main inside a bare remote, as a hosting
// service would when a review request is merged.
func MergeBranch(t *testing.T, remoteDir, branch string) {
	t.Helper()

	work := filepath.Join(t.TempDir(), "merge")
	mustGit(t, filepath.Dir(work), "clone", remoteDir, work)
	configureUser(t, work)
	mustGit(t, work, "merge", "--no-ff", "-m", "Merge "+branch, "origin/"+branch)
	mustGit(t, work, "push", "origin", "main")
}

// FileOnBranch reports whether path exists on branch of repoDir
// (which may be bare).
func FileOnBranch(t *testing.T, repoDir, branch, path string) bool {
	t.Helper()
	_, err := runGit(repoDir, "cat-file", "-e", branch+":"+path)
	return err == nil
}

// BranchExists reports whether refs/heads/branch exists in repoDir.
func BranchExists(t *testing.T, repoDir, branch string) bool {
	t.Helper()
	_, err := runGit(repoDir, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func configureUser(t *testing.T, dir string) {
	t.Helper()
	mustGit(t, dir, "config", "user.email", "test@test.com")
	mustGit(t, dir, "config", "user.name", "Test User")
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runGit(dir, args...)
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return out
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test User",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test User",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	output, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(output)), err
}
