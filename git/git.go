package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Context manages git operations for a repository.
type Context struct {
	repoPath string        // Path to the repository working tree
	workDir  string        // Working directory for commands (defaults to repoPath)
	runner   CommandRunner // Command runner (defaults to ExecRunner)
}

// Option configures Context.
type Option func(*Context)

// NewContext creates a new git context for the repository.
// It validates that the path is a git repository and applies any options.
func NewContext(repoPath string, opts ...Option) (*Context, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	g := &Context{
		repoPath: absPath,
		workDir:  absPath,
		runner:   NewExecRunner(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if _, err := g.runGit("rev-parse", "--git-dir"); err != nil {
		return nil, ErrNotGitRepo
	}
	return g, nil
}

// Clone clones url into dir and returns a context for the clone.
// If dir already holds a repository it is opened instead.
func Clone(url, dir string, opts ...Option) (*Context, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return NewContext(dir, opts...)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	parent := filepath.Dir(absDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create clone parent: %w", err)
	}

	g := &Context{repoPath: parent, workDir: parent, runner: NewExecRunner()}
	for _, opt := range opts {
		opt(g)
	}
	if out, err := g.runGit("clone", url, absDir); err != nil {
		return nil, &Error{Op: "clone", Cmd: "git clone", Output: out, Err: err}
	}
	return NewContext(absDir, opts...)
}

// WithRunner sets a custom command runner for git operations.
// This is primarily used for testing to inject mock command execution.
func WithRunner(runner CommandRunner) Option {
	return func(g *Context) {
		g.runner = runner
	}
}

// WithEnv runs git with extra environment variables, e.g. a credential helper.
func WithEnv(env ...string) Option {
	return func(g *Context) {
		g.runner = NewExecRunner(env...)
	}
}

// RepoPath returns the path to the repository.
func (g *Context) RepoPath() string {
	return g.repoPath
}

// CurrentBranch returns the current branch name.
func (g *Context) CurrentBranch() (string, error) {
	branch, err := g.runGit("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", &Error{Op: "get current branch", Err: err}
	}
	return branch, nil
}

// Checkout switches to the specified ref (branch, tag, or commit).
func (g *Context) Checkout(ref string) error {
	if _, err := g.runGit("checkout", ref); err != nil {
		return &Error{Op: "checkout", Err: err}
	}
	return nil
}

// CreateBranch creates a new branch at startPoint, or at HEAD if startPoint is empty.
func (g *Context) CreateBranch(name, startPoint string) error {
	args := []string{"branch", name}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	if _, err := g.runGit(args...); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		return &Error{Op: "create branch", Err: err}
	}
	return nil
}

// BranchExists checks if a local branch exists.
func (g *Context) BranchExists(name string) bool {
	_, err := g.runGit("rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// Stage adds files to the staging area.
func (g *Context) Stage(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "stage files", Err: err}
	}
	return nil
}

// Move renames a tracked file with git mv.
func (g *Context) Move(oldPath, newPath string) error {
	if _, err := g.runGit("mv", oldPath, newPath); err != nil {
		return &Error{Op: "move", Cmd: "git mv", Err: err}
	}
	return nil
}

// Commit creates a commit with the given message.
// Returns ErrNothingToCommit if there are no staged changes.
func (g *Context) Commit(message string) error {
	output, err := g.runGit("commit", "-m", message)
	if err != nil {
		if strings.Contains(output, "nothing to commit") ||
			strings.Contains(err.Error(), "nothing to commit") {
			return ErrNothingToCommit
		}
		return &Error{Op: "commit", Output: output, Err: err}
	}
	return nil
}

// Push pushes the branch to the remote.
// If setUpstream is true, uses -u to set upstream tracking.
func (g *Context) Push(remote, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "-u")
	}
	args = append(args, remote, branch)

	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "push", Err: err}
	}
	return nil
}

// Pull fast-forwards the current branch from the remote.
func (g *Context) Pull(remote, branch string) error {
	if _, err := g.runGit("pull", "--ff-only", remote, branch); err != nil {
		return &Error{Op: "pull", Err: err}
	}
	return nil
}

// Fetch fetches updates from the remote, pruning deleted branches.
// Extra refspecs are fetched in the same call.
func (g *Context) Fetch(remote string, refspecs ...string) error {
	args := append([]string{"fetch", "--prune", remote}, refspecs...)
	if _, err := g.runGit(args...); err != nil {
		return &Error{Op: "fetch", Err: err}
	}
	return nil
}

// RemoteURL returns the fetch URL of remote.
func (g *Context) RemoteURL(remote string) (string, error) {
	url, err := g.runGit("remote", "get-url", remote)
	if err != nil {
		return "", &Error{Op: "get remote URL", Err: err}
	}
	return url, nil
}

// RemoteRefs lists the remote-tracking refs of remote with their commits.
// Names are relative to refs/remotes/<remote>/.
func (g *Context) RemoteRefs(remote string) ([]Ref, error) {
	out, err := g.runGit("for-each-ref", "--format=%(objectname) %(refname)", "refs/remotes/"+remote)
	if err != nil {
		return nil, &Error{Op: "list refs", Err: err}
	}
	return parseRefs(out, "refs/remotes/"+remote+"/"), nil
}

// runGit executes a git command and returns stdout.
func (g *Context) runGit(args ...string) (string, error) {
	return g.runner.Run(g.workDir, "git", args...)
}
