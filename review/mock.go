package review

import (
	"context"
	"fmt"
)

// MockProvider is a mock implementation of Provider for testing.
// Unset functions fall back to benign defaults.
type MockProvider struct {
	RepoName string

	GetRepositoryFunc       func(ctx context.Context, name string) (*Repository, error)
	GetPullRequestFunc      func(ctx context.Context, repo string, number int) (*PullRequest, error)
	CreatePullRequestFunc   func(ctx context.Context, opts Options) (*PullRequest, error)
	FindOpenPullRequestFunc func(ctx context.Context, head string) (*PullRequest, error)
	ListCommentsFunc        func(ctx context.Context, repo string, number int) ([]*Comment, error)
	GetCommentFunc          func(ctx context.Context, repo string, number int, id int64) (*Comment, error)
	EditCommentFunc         func(ctx context.Context, repo string, number int, id int64, body string) (*Comment, error)
	DeleteBranchFunc        func(ctx context.Context, branch string) error
	CreateIssueFunc         func(ctx context.Context, title, body string) (*Issue, error)
	ListIssuesFunc          func(ctx context.Context, state State) ([]*Issue, error)
}

// Repo implements Provider.
func (m *MockProvider) Repo() string {
	if m.RepoName == "" {
		return "org/staging"
	}
	return m.RepoName
}

// GetRepository implements Provider.
func (m *MockProvider) GetRepository(ctx context.Context, name string) (*Repository, error) {
	if m.GetRepositoryFunc != nil {
		return m.GetRepositoryFunc(ctx, name)
	}
	return &Repository{FullName: name, DefaultBranch: "main"}, nil
}

// GetPullRequest implements Provider.
func (m *MockProvider) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	if m.GetPullRequestFunc != nil {
		return m.GetPullRequestFunc(ctx, repo, number)
	}
	return &PullRequest{Number: number, State: StateOpen, Base: "main"}, nil
}

// CreatePullRequest implements Provider.
func (m *MockProvider) CreatePullRequest(ctx context.Context, opts Options) (*PullRequest, error) {
	if m.CreatePullRequestFunc != nil {
		return m.CreatePullRequestFunc(ctx, opts)
	}
	return &PullRequest{Number: 1, HTMLURL: "https://example.com/pr/1", Head: opts.Head, Base: opts.Base, State: StateOpen}, nil
}

// FindOpenPullRequest implements Provider.
func (m *MockProvider) FindOpenPullRequest(ctx context.Context, head string) (*PullRequest, error) {
	if m.FindOpenPullRequestFunc != nil {
		return m.FindOpenPullRequestFunc(ctx, head)
	}
	return nil, fmt.Errorf("open pull request for %s: %w", head, ErrNotFound)
}

// ListComments implements Provider.
func (m *MockProvider) ListComments(ctx context.Context, repo string, number int) ([]*Comment, error) {
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, repo, number)
	}
	return nil, nil
}

// GetComment implements Provider.
func (m *MockProvider) GetComment(ctx context.Context, repo string, number int, id int64) (*Comment, error) {
	if m.GetCommentFunc != nil {
		return m.GetCommentFunc(ctx, repo, number, id)
	}
	return &Comment{ID: id}, nil
}

// EditComment implements Provider.
func (m *MockProvider) EditComment(ctx context.Context, repo string, number int, id int64, body string) (*Comment, error) {
	if m.EditCommentFunc != nil {
		return m.EditCommentFunc(ctx, repo, number, id, body)
	}
	return &Comment{ID: id, Body: body}, nil
}

// DeleteBranch implements Provider.
func (m *MockProvider) DeleteBranch(ctx context.Context, branch string) error {
	if m.DeleteBranchFunc != nil {
		return m.DeleteBranchFunc(ctx, branch)
	}
	return nil
}

// CreateIssue implements Provider.
func (m *MockProvider) CreateIssue(ctx context.Context, title, body string) (*Issue, error) {
	if m.CreateIssueFunc != nil {
		return m.CreateIssueFunc(ctx, title, body)
	}
	return &Issue{Number: 1, Title: title, Body: body, State: StateOpen}, nil
}

// ListIssues implements Provider.
func (m *MockProvider) ListIssues(ctx context.Context, state State) ([]*Issue, error) {
	if m.ListIssuesFunc != nil {
		return m.ListIssuesFunc(ctx, state)
	}
	return nil, nil
}

// PullRefSpec implements Provider.
func (m *MockProvider) PullRefSpec() string {
	return "+refs/pull/*:refs/remotes/origin/pull/*"
}

// ParsePullRef implements Provider.
func (m *MockProvider) ParsePullRef(name string) (int, bool) {
	return parseNumberedRef(name, "pull")
}
