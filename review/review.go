package review

import (
	"context"
	"fmt"
	"strings"
)

// State is the hosting-side state of a review request or issue.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Provider is the review-hosting API the lifecycle talks to. A provider
// is bound to one review repository; sponsor lookups name their repository
// explicitly. Implementations exist for GitHub and GitLab.
type Provider interface {
	// Repo returns the review repository's full name.
	Repo() string

	// GetRepository looks up a repository by full name.
	GetRepository(ctx context.Context, name string) (*Repository, error)

	// GetPullRequest retrieves a pull request by number.
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)

	// CreatePullRequest opens a pull request in the review repository.
	// Returns ErrExists if one is already open for the head branch.
	CreatePullRequest(ctx context.Context, opts Options) (*PullRequest, error)

	// FindOpenPullRequest returns the open pull request for head, or ErrNotFound.
	FindOpenPullRequest(ctx context.Context, head string) (*PullRequest, error)

	// ListComments lists the conversation comments of a pull request.
	ListComments(ctx context.Context, repo string, number int) ([]*Comment, error)

	// GetComment retrieves one comment of a pull request.
	GetComment(ctx context.Context, repo string, number int, id int64) (*Comment, error)

	// EditComment replaces a comment's body.
	EditComment(ctx context.Context, repo string, number int, id int64, body string) (*Comment, error)

	// DeleteBranch removes a branch of the review repository.
	// Returns ErrNotFound if it does not exist.
	DeleteBranch(ctx context.Context, branch string) error

	// CreateIssue files an issue in the review repository.
	CreateIssue(ctx context.Context, title, body string) (*Issue, error)

	// ListIssues lists issues (never pull requests) in the given state.
	ListIssues(ctx context.Context, state State) ([]*Issue, error)

	// PullRefSpec is the fetch refspec that mirrors review-request head refs
	// under refs/remotes/origin/.
	PullRefSpec() string

	// ParsePullRef extracts the request number from a mirrored ref name
	// such as "pull/12/head".
	ParsePullRef(name string) (int, bool)
}

// Options configures pull request creation.
type Options struct {
	Title string // PR title (required)
	Body  string // PR description (markdown)
	Base  string // Target branch (default: "main")
	Head  string // Source branch (required)
}

// Repository is a hosted repository.
type Repository struct {
	FullName      string
	DefaultBranch string
	HTMLURL       string
}

// PullRequest is a review request (GitHub pull request or GitLab merge request).
type PullRequest struct {
	Number  int
	HTMLURL string
	Title   string
	Body    string
	Head    string
	Base    string
	State   State
	Merged  bool
}

// Comment is a conversation comment on a pull request.
type Comment struct {
	ID      int64
	Body    string
	HTMLURL string
}

// Issue is a tracker issue.
type Issue struct {
	Number  int
	Title   string
	Body    string
	HTMLURL string
	State   State
}

// SplitRepo splits "owner/name" into its parts.
func SplitRepo(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository name %q: want owner/name", fullName)
	}
	return owner, name, nil
}

// parseNumberedRef parses "<kind>/<n>/head".
func parseNumberedRef(name, kind string) (int, bool) {
	rest, ok := strings.CutPrefix(name, kind+"/")
	if !ok {
		return 0, false
	}
	num, ok := strings.CutSuffix(rest, "/head")
	if !ok {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(num, "%d", &n); err != nil || fmt.Sprint(n) != num || n <= 0 {
		return 0, false
	}
	return n, true
}
