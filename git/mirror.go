package git

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRemote is the remote every mirror pushes to.
const DefaultRemote = "origin"

// Mirror is a local clone of the review repository. It exposes the
// branch-scoped file operations the ingestion lifecycle records its audit
// trail with. All methods leave the clone checked out on the branch they
// operated on.
type Mirror struct {
	git        *Context
	remote     string
	mainBranch string
}

// NewMirror wraps an existing git context.
func NewMirror(g *Context, mainBranch string) *Mirror {
	if mainBranch == "" {
		mainBranch = "main"
	}
	return &Mirror{git: g, remote: DefaultRemote, mainBranch: mainBranch}
}

// OpenMirror clones url into dir, or opens the clone already there. An
// existing clone whose origin is not url is rejected with
// ErrRemoteMismatch.
func OpenMirror(url, dir, mainBranch string, opts ...Option) (*Mirror, error) {
	g, err := Clone(url, dir, opts...)
	if err != nil {
		return nil, err
	}
	origin, err := g.RemoteURL(DefaultRemote)
	if err != nil {
		return nil, err
	}
	if normalizeRemote(origin) != normalizeRemote(url) {
		return nil, fmt.Errorf("%s: origin is %s, want %s: %w", dir, origin, url, ErrRemoteMismatch)
	}
	return NewMirror(g, mainBranch), nil
}

func normalizeRemote(url string) string {
	return strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
}

// checkout switches to branch unless the clone is already on it.
func (m *Mirror) checkout(branch string) error {
	if cur, err := m.git.CurrentBranch(); err == nil && cur == branch {
		return nil
	}
	return m.git.Checkout(branch)
}

// Path returns the absolute path of a repository-relative file.
func (m *Mirror) Path(rel string) string {
	return filepath.Join(m.git.RepoPath(), filepath.FromSlash(rel))
}

// MainBranch returns the integration branch name.
func (m *Mirror) MainBranch() string {
	return m.mainBranch
}

// Sync checks out the main branch, pulls it, and fetches remote branches
// plus any extra refspecs (such as review-request refs).
func (m *Mirror) Sync(refspecs ...string) error {
	if err := m.checkout(m.mainBranch); err != nil {
		return err
	}
	if err := m.git.Pull(m.remote, m.mainBranch); err != nil {
		return err
	}
	specs := append([]string{fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", m.remote)}, refspecs...)
	return m.git.Fetch(m.remote, specs...)
}

// BranchExists reports whether a local branch exists.
func (m *Mirror) BranchExists(name string) bool {
	return m.git.BranchExists(name)
}

// CreateBranch creates name from the remote main branch.
// Returns ErrBranchExists if it is already present locally.
func (m *Mirror) CreateBranch(name string) error {
	return m.git.CreateBranch(name, m.remote+"/"+m.mainBranch)
}

// CommitFile writes content to rel on branch and commits it.
// An identical file already committed is not an error.
func (m *Mirror) CommitFile(branch, rel string, content []byte, message string) error {
	if err := m.checkout(branch); err != nil {
		return err
	}
	path := m.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := m.git.Stage(rel); err != nil {
		return err
	}
	if err := m.git.Commit(message); err != nil && !errors.Is(err, ErrNothingToCommit) {
		return err
	}
	return nil
}

// MoveFile renames oldRel to newRel on branch and commits the rename.
// It reports false without touching the tree when oldRel does not exist.
func (m *Mirror) MoveFile(branch, oldRel, newRel, message string) (bool, error) {
	if err := m.checkout(branch); err != nil {
		return false, err
	}
	if _, err := os.Stat(m.Path(oldRel)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", oldRel, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.Path(newRel)), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(newRel), err)
	}
	if err := m.git.Move(oldRel, newRel); err != nil {
		return false, err
	}
	if err := m.git.Commit(message); err != nil && !errors.Is(err, ErrNothingToCommit) {
		return false, err
	}
	return true, nil
}

// Push publishes branch to the remote.
func (m *Mirror) Push(branch string) error {
	return m.git.Push(m.remote, branch, branch != m.mainBranch)
}

// RemoteRefs lists remote-tracking refs as of the last Sync.
func (m *Mirror) RemoteRefs() ([]Ref, error) {
	return m.git.RemoteRefs(m.remote)
}
