package git

import (
	"errors"
	"testing"
)

func newMockContext(t *testing.T, runner CommandRunner) *Context {
	t.Helper()
	dir := t.TempDir()
	return &Context{repoPath: dir, workDir: dir, runner: runner}
}

func TestNewContext_NotARepo(t *testing.T) {
	runner := NewMockRunner()
	runner.OnCommand("git", "rev-parse", "--git-dir").Return("", errors.New("fatal: not a git repository"))

	_, err := NewContext(t.TempDir(), WithRunner(runner))
	if !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("err = %v, want ErrNotGitRepo", err)
	}
}

func TestCreateBranch(t *testing.T) {
	t.Run("from start point", func(t *testing.T) {
		runner := NewMockRunner()
		runner.OnAnyCommand().Return("", nil)
		g := newMockContext(t, runner)

		if err := g.CreateBranch("pkg.tar.gz", "origin/main"); err != nil {
			t.Fatalf("CreateBranch: %v", err)
		}
		if !runner.WasCalled("git", "branch", "pkg.tar.gz", "origin/main") {
			t.Errorf("calls = %+v", runner.Calls)
		}
	})

	t.Run("already exists", func(t *testing.T) {
		runner := NewSequentialMockRunner()
		runner.AddOutputError("fatal: a branch named 'x' already exists", "exit status 128", nil)
		g := newMockContext(t, runner)

		if err := g.CreateBranch("x", ""); !errors.Is(err, ErrBranchExists) {
			t.Errorf("err = %v, want ErrBranchExists", err)
		}
	})
}

func TestCommit_NothingToCommit(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutputError("nothing to commit, working tree clean", "exit status 1", nil)
	g := newMockContext(t, runner)

	if err := g.Commit("msg"); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("err = %v, want ErrNothingToCommit", err)
	}
}

func TestPush(t *testing.T) {
	tests := []struct {
		name        string
		setUpstream bool
		want        []string
	}{
		{"plain", false, []string{"push", "origin", "main"}},
		{"upstream", true, []string{"push", "-u", "origin", "feature"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewMockRunner()
			runner.OnAnyCommand().Return("", nil)
			g := newMockContext(t, runner)

			if err := g.Push("origin", tt.want[len(tt.want)-1], tt.setUpstream); err != nil {
				t.Fatalf("Push: %v", err)
			}
			if !argsMatch(runner.Calls[0].Args, tt.want) {
				t.Errorf("args = %v, want %v", runner.Calls[0].Args, tt.want)
			}
		})
	}
}

func TestPush_Error(t *testing.T) {
	runner := NewMockRunner()
	runner.OnAnyCommand().Return("", errors.New("rejected"))
	g := newMockContext(t, runner)

	err := g.Push("origin", "main", false)
	var gitErr *Error
	if !errors.As(err, &gitErr) || gitErr.Op != "push" {
		t.Errorf("err = %v, want *Error with Op push", err)
	}
}

func TestFetch_Refspecs(t *testing.T) {
	runner := NewMockRunner()
	runner.OnAnyCommand().Return("", nil)
	g := newMockContext(t, runner)

	if err := g.Fetch("origin", "+refs/pull/*:refs/remotes/origin/pull/*"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !runner.WasCalled("git", "fetch", "--prune", "origin", "+refs/pull/*:refs/remotes/origin/pull/*") {
		t.Errorf("calls = %+v", runner.Calls)
	}
}

func TestRemoteRefs(t *testing.T) {
	runner := NewMockRunner()
	runner.OnAnyCommand().Return(
		"aaa refs/remotes/origin/HEAD\n"+
			"aaa refs/remotes/origin/main\n"+
			"bbb refs/remotes/origin/pkg-1.tar.gz\n"+
			"bbb refs/remotes/origin/pull/7/head\n"+
			"ccc refs/remotes/origin/pull/8/head\n", nil)
	g := newMockContext(t, runner)

	refs, err := g.RemoteRefs("origin")
	if err != nil {
		t.Fatalf("RemoteRefs: %v", err)
	}
	if len(refs) != 4 {
		t.Fatalf("len(refs) = %d, want 4 (HEAD skipped): %+v", len(refs), refs)
	}

	commit, ok := CommitOf(refs, "pkg-1.tar.gz")
	if !ok || commit != "bbb" {
		t.Fatalf("CommitOf = (%q, %v)", commit, ok)
	}
	at := RefsAt(refs, commit)
	if len(at) != 2 || at[0] != "pkg-1.tar.gz" || at[1] != "pull/7/head" {
		t.Errorf("RefsAt = %v", at)
	}
	if _, ok := CommitOf(refs, "missing"); ok {
		t.Error("CommitOf should miss unknown ref")
	}
}

func TestMirrorCheckout_SkipsCurrentBranch(t *testing.T) {
	runner := NewMockRunner()
	runner.OnCommand("git", "rev-parse", "--abbrev-ref", "HEAD").Return("main", nil)
	runner.OnAnyCommand().Return("", nil)
	m := NewMirror(newMockContext(t, runner), "main")

	if err := m.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if runner.WasCalled("git", "checkout") {
		t.Errorf("checkout should be skipped on the current branch: %+v", runner.Calls)
	}

	if _, err := m.MoveFile("other", "a", "b", "msg"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if !runner.WasCalled("git", "checkout", "other") {
		t.Errorf("expected checkout of other: %+v", runner.Calls)
	}
}
