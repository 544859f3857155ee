package git

import "errors"

// Sentinels returned by Context and Mirror. Callers match them with
// errors.Is; the wrapping *Error carries the command output.
var (
	ErrNotGitRepo      = errors.New("not a git repository")
	ErrBranchExists    = errors.New("branch already exists")
	ErrBranchNotFound  = errors.New("branch not found")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrRemoteMismatch  = errors.New("clone points at a different remote")
)

// Error is a failed git invocation.
type Error struct {
	Op     string // what the mirror was doing: "checkout", "push", ...
	Cmd    string // command line, when it adds information
	Output string // git's combined output
	Err    error
}

func (e *Error) Error() string {
	op := e.Op
	if e.Cmd != "" {
		op += " (" + e.Cmd + ")"
	}
	if e.Output != "" {
		return op + ": " + e.Output
	}
	return op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
