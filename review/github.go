package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubProvider implements Provider for GitHub repositories.
type GitHubProvider struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubProvider creates a GitHub provider authenticated with a
// personal access token. repo is the review repository ("owner/name").
func NewGitHubProvider(token, repo string) (*GitHubProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return NewGitHubProviderWithClient(oauth2.NewClient(context.Background(), ts), repo, "")
}

// NewGitHubProviderWithClient creates a provider on an already
// authenticated HTTP client. baseURL selects a GitHub Enterprise API
// endpoint; empty means github.com.
func NewGitHubProviderWithClient(httpClient *http.Client, repo, baseURL string) (*GitHubProvider, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(httpClient)
	if baseURL != "" {
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("GitHub base URL: %w", err)
		}
	}

	return &GitHubProvider{client: client, owner: owner, repo: name}, nil
}

// Repo implements Provider.
func (p *GitHubProvider) Repo() string {
	return p.owner + "/" + p.repo
}

// GetRepository implements Provider.
func (p *GitHubProvider) GetRepository(ctx context.Context, name string) (*Repository, error) {
	owner, repo, err := SplitRepo(name)
	if err != nil {
		return nil, err
	}
	r, resp, err := p.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("repository %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &Repository{
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		HTMLURL:       r.GetHTMLURL(),
	}, nil
}

// GetPullRequest implements Provider.
func (p *GitHubProvider) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	pr, resp, err := p.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("pull request %s#%d: %w", repo, number, ErrNotFound)
		}
		return nil, fmt.Errorf("get PR: %w", err)
	}
	return prFromGitHub(pr), nil
}

// CreatePullRequest implements Provider.
func (p *GitHubProvider) CreatePullRequest(ctx context.Context, opts Options) (*PullRequest, error) {
	base := opts.Base
	if base == "" {
		base = "main"
	}

	newPR := &github.NewPullRequest{
		Title: github.String(opts.Title),
		Body:  github.String(opts.Body),
		Base:  github.String(base),
		Head:  github.String(opts.Head),
	}

	pr, resp, err := p.client.PullRequests.Create(ctx, p.owner, p.repo, newPR)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			if strings.Contains(err.Error(), "A pull request already exists") {
				return nil, ErrExists
			}
			if strings.Contains(err.Error(), "No commits between") {
				return nil, ErrNoChanges
			}
		}
		return nil, fmt.Errorf("create PR: %w", err)
	}
	return prFromGitHub(pr), nil
}

// FindOpenPullRequest implements Provider.
func (p *GitHubProvider) FindOpenPullRequest(ctx context.Context, head string) (*PullRequest, error) {
	prs, _, err := p.client.PullRequests.List(ctx, p.owner, p.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  p.owner + ":" + head,
	})
	if err != nil {
		return nil, fmt.Errorf("list PRs: %w", err)
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("open pull request for %s: %w", head, ErrNotFound)
	}
	return prFromGitHub(prs[0]), nil
}

// ListComments implements Provider.
func (p *GitHubProvider) ListComments(ctx context.Context, repo string, number int) ([]*Comment, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var result []*Comment
	for {
		comments, resp, err := p.client.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		for _, c := range comments {
			result = append(result, commentFromGitHub(c))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// GetComment implements Provider.
func (p *GitHubProvider) GetComment(ctx context.Context, repo string, _ int, id int64) (*Comment, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	c, resp, err := p.client.Issues.GetComment(ctx, owner, name, id)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return commentFromGitHub(c), nil
}

// EditComment implements Provider.
func (p *GitHubProvider) EditComment(ctx context.Context, repo string, _ int, id int64, body string) (*Comment, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	c, _, err := p.client.Issues.EditComment(ctx, owner, name, id, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}
	return commentFromGitHub(c), nil
}

// DeleteBranch implements Provider.
func (p *GitHubProvider) DeleteBranch(ctx context.Context, branch string) error {
	resp, err := p.client.Git.DeleteRef(ctx, p.owner, p.repo, "heads/"+branch)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound ||
			(resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "Reference does not exist"))) {
			return fmt.Errorf("branch %s: %w", branch, ErrNotFound)
		}
		return fmt.Errorf("delete branch: %w", err)
	}
	return nil
}

// CreateIssue implements Provider.
func (p *GitHubProvider) CreateIssue(ctx context.Context, title, body string) (*Issue, error) {
	issue, _, err := p.client.Issues.Create(ctx, p.owner, p.repo, &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return issueFromGitHub(issue), nil
}

// ListIssues implements Provider. GitHub reports pull requests as issues;
// those are skipped.
func (p *GitHubProvider) ListIssues(ctx context.Context, state State) ([]*Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       string(state),
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var result []*Issue
	for {
		issues, resp, err := p.client.Issues.ListByRepo(ctx, p.owner, p.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			result = append(result, issueFromGitHub(issue))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// PullRefSpec implements Provider.
func (p *GitHubProvider) PullRefSpec() string {
	return "+refs/pull/*:refs/remotes/origin/pull/*"
}

// ParsePullRef implements Provider.
func (p *GitHubProvider) ParsePullRef(name string) (int, bool) {
	return parseNumberedRef(name, "pull")
}

func prFromGitHub(pr *github.PullRequest) *PullRequest {
	result := &PullRequest{
		Number:  pr.GetNumber(),
		HTMLURL: pr.GetHTMLURL(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		State:   State(pr.GetState()),
		Merged:  pr.GetMerged(),
	}
	if pr.Head != nil {
		result.Head = pr.Head.GetRef()
	}
	if pr.Base != nil {
		result.Base = pr.Base.GetRef()
	}
	return result
}

func commentFromGitHub(c *github.IssueComment) *Comment {
	return &Comment{ID: c.GetID(), Body: c.GetBody(), HTMLURL: c.GetHTMLURL()}
}

func issueFromGitHub(i *github.Issue) *Issue {
	return &Issue{
		Number:  i.GetNumber(),
		Title:   i.GetTitle(),
		Body:    i.GetBody(),
		HTMLURL: i.GetHTMLURL(),
		State:   State(i.GetState()),
	}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
