package review

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Fake is an in-memory review host: it keeps pull requests, comments,
// issues and branch deletions so tests can assert on their final state.
type Fake struct {
	mu sync.Mutex

	repo     string
	nextPR   int
	nextItem int64

	PullRequests map[string]map[int]*PullRequest // repo -> number -> PR
	Comments     map[int64]*Comment
	commentPR    map[int64]string // comment id -> "repo#number"
	Issues       []*Issue
	Deleted      []string // deleted branch names

	// OnCreate runs after a pull request is opened, e.g. to publish its
	// head ref in a test remote.
	OnCreate func(pr *PullRequest)
}

// NewFake creates an empty fake bound to the review repository repo.
func NewFake(repo string) *Fake {
	return &Fake{
		repo:         repo,
		nextPR:       100,
		nextItem:     1000,
		PullRequests: make(map[string]map[int]*PullRequest),
		Comments:     make(map[int64]*Comment),
		commentPR:    make(map[int64]string),
	}
}

// AddPullRequest registers an existing pull request, e.g. a sponsor request.
func (f *Fake) AddPullRequest(repo string, pr *PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PullRequests[repo] == nil {
		f.PullRequests[repo] = make(map[int]*PullRequest)
	}
	f.PullRequests[repo][pr.Number] = pr
}

// AddComment attaches a comment to repo#number and returns its id.
func (f *Fake) AddComment(repo string, number int, body string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextItem++
	id := f.nextItem
	f.Comments[id] = &Comment{ID: id, Body: body}
	f.commentPR[id] = fmt.Sprintf("%s#%d", repo, number)
	return id
}

// SetState changes a pull request's disposition.
func (f *Fake) SetState(repo string, number int, state State, merged bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr := f.PullRequests[repo][number]; pr != nil {
		pr.State = state
		pr.Merged = merged
	}
}

// CommentBody returns the current body of comment id.
func (f *Fake) CommentBody(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.Comments[id]; c != nil {
		return c.Body
	}
	return ""
}

// Repo implements Provider.
func (f *Fake) Repo() string { return f.repo }

// GetRepository implements Provider.
func (f *Fake) GetRepository(_ context.Context, name string) (*Repository, error) {
	if _, _, err := SplitRepo(name); err != nil {
		return nil, err
	}
	return &Repository{FullName: name, DefaultBranch: "main", HTMLURL: "https://example.com/" + name}, nil
}

// GetPullRequest implements Provider.
func (f *Fake) GetPullRequest(_ context.Context, repo string, number int) (*PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr := f.PullRequests[repo][number]
	if pr == nil {
		return nil, fmt.Errorf("pull request %s#%d: %w", repo, number, ErrNotFound)
	}
	cp := *pr
	return &cp, nil
}

// CreatePullRequest implements Provider.
func (f *Fake) CreatePullRequest(_ context.Context, opts Options) (*PullRequest, error) {
	f.mu.Lock()
	for _, pr := range f.PullRequests[f.repo] {
		if pr.Head == opts.Head && pr.State == StateOpen {
			f.mu.Unlock()
			return nil, ErrExists
		}
	}
	f.nextPR++
	base := opts.Base
	if base == "" {
		base = "main"
	}
	pr := &PullRequest{
		Number:  f.nextPR,
		HTMLURL: fmt.Sprintf("https://example.com/%s/pull/%d", f.repo, f.nextPR),
		Title:   opts.Title,
		Body:    opts.Body,
		Head:    opts.Head,
		Base:    base,
		State:   StateOpen,
	}
	if f.PullRequests[f.repo] == nil {
		f.PullRequests[f.repo] = make(map[int]*PullRequest)
	}
	f.PullRequests[f.repo][pr.Number] = pr
	hook := f.OnCreate
	f.mu.Unlock()

	cp := *pr
	if hook != nil {
		hook(&cp)
	}
	return &cp, nil
}

// FindOpenPullRequest implements Provider.
func (f *Fake) FindOpenPullRequest(_ context.Context, head string) (*PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.PullRequests[f.repo] {
		if pr.Head == head && pr.State == StateOpen {
			cp := *pr
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("open pull request for %s: %w", head, ErrNotFound)
}

// ListComments implements Provider.
func (f *Fake) ListComments(_ context.Context, repo string, number int) ([]*Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s#%d", repo, number)
	var ids []int64
	for id, owner := range f.commentPR {
		if owner == key {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	result := make([]*Comment, 0, len(ids))
	for _, id := range ids {
		cp := *f.Comments[id]
		result = append(result, &cp)
	}
	return result, nil
}

// GetComment implements Provider.
func (f *Fake) GetComment(_ context.Context, _ string, _ int, id int64) (*Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.Comments[id]
	if c == nil {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// EditComment implements Provider.
func (f *Fake) EditComment(_ context.Context, _ string, _ int, id int64, body string) (*Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.Comments[id]
	if c == nil {
		return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	c.Body = body
	cp := *c
	return &cp, nil
}

// DeleteBranch implements Provider.
func (f *Fake) DeleteBranch(_ context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, branch)
	return nil
}

// CreateIssue implements Provider.
func (f *Fake) CreateIssue(_ context.Context, title, body string) (*Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := &Issue{Number: len(f.Issues) + 1, Title: title, Body: body, State: StateOpen}
	f.Issues = append(f.Issues, issue)
	cp := *issue
	return &cp, nil
}

// ListIssues implements Provider.
func (f *Fake) ListIssues(_ context.Context, state State) ([]*Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*Issue
	for _, issue := range f.Issues {
		if state == "" || issue.State == state {
			cp := *issue
			result = append(result, &cp)
		}
	}
	return result, nil
}

// PullRefSpec implements Provider.
func (f *Fake) PullRefSpec() string {
	return "+refs/pull/*:refs/remotes/origin/pull/*"
}

// ParsePullRef implements Provider.
func (f *Fake) ParsePullRef(name string) (int, bool) {
	return parseNumberedRef(name, "pull")
}
