package review

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// GitLabProvider implements Provider for GitLab projects. Merge requests
// play the role of pull requests and notes the role of comments.
type GitLabProvider struct {
	client    *gitlab.Client
	projectID string // "namespace/project"
}

// NewGitLabProvider creates a new GitLab provider.
// baseURL is the GitLab instance URL (empty for gitlab.com).
func NewGitLabProvider(token, baseURL, project string) (*GitLabProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	var client *gitlab.Client
	var err error
	if baseURL != "" {
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	} else {
		client, err = gitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, projectID: project}, nil
}

// Repo implements Provider.
func (p *GitLabProvider) Repo() string {
	return p.projectID
}

// GetRepository implements Provider.
func (p *GitLabProvider) GetRepository(ctx context.Context, name string) (*Repository, error) {
	project, resp, err := p.client.Projects.GetProject(name, nil, gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return nil, fmt.Errorf("project %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &Repository{
		FullName:      project.PathWithNamespace,
		DefaultBranch: project.DefaultBranch,
		HTMLURL:       project.WebURL,
	}, nil
}

// GetPullRequest implements Provider.
func (p *GitLabProvider) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	mr, resp, err := p.client.MergeRequests.GetMergeRequest(repo, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return nil, fmt.Errorf("merge request %s!%d: %w", repo, number, ErrNotFound)
		}
		return nil, fmt.Errorf("get MR: %w", err)
	}
	return prFromGitLab(mr), nil
}

// CreatePullRequest implements Provider.
func (p *GitLabProvider) CreatePullRequest(ctx context.Context, opts Options) (*PullRequest, error) {
	targetBranch := opts.Base
	if targetBranch == "" {
		targetBranch = "main"
	}

	mr, resp, err := p.client.MergeRequests.CreateMergeRequest(p.projectID, &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(opts.Title),
		Description:  gitlab.Ptr(opts.Body),
		SourceBranch: gitlab.Ptr(opts.Head),
		TargetBranch: gitlab.Ptr(targetBranch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, ErrExists
		}
		if resp != nil && resp.StatusCode == http.StatusBadRequest && strings.Contains(err.Error(), "No commits between") {
			return nil, ErrNoChanges
		}
		return nil, fmt.Errorf("create MR: %w", err)
	}
	return prFromGitLab(mr), nil
}

// FindOpenPullRequest implements Provider.
func (p *GitLabProvider) FindOpenPullRequest(ctx context.Context, head string) (*PullRequest, error) {
	mrs, _, err := p.client.MergeRequests.ListProjectMergeRequests(p.projectID, &gitlab.ListProjectMergeRequestsOptions{
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(head),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list MRs: %w", err)
	}
	if len(mrs) == 0 {
		return nil, fmt.Errorf("open merge request for %s: %w", head, ErrNotFound)
	}
	return prFromGitLab(mrs[0]), nil
}

// ListComments implements Provider. System notes are skipped.
func (p *GitLabProvider) ListComments(ctx context.Context, repo string, number int) ([]*Comment, error) {
	opts := &gitlab.ListMergeRequestNotesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	var result []*Comment
	for {
		notes, resp, err := p.client.Notes.ListMergeRequestNotes(repo, number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list notes: %w", err)
		}
		for _, n := range notes {
			if n.System {
				continue
			}
			result = append(result, &Comment{ID: int64(n.ID), Body: n.Body})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// GetComment implements Provider.
func (p *GitLabProvider) GetComment(ctx context.Context, repo string, number int, id int64) (*Comment, error) {
	n, resp, err := p.client.Notes.GetMergeRequestNote(repo, number, int(id), gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return nil, fmt.Errorf("note %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &Comment{ID: int64(n.ID), Body: n.Body}, nil
}

// EditComment implements Provider.
func (p *GitLabProvider) EditComment(ctx context.Context, repo string, number int, id int64, body string) (*Comment, error) {
	n, _, err := p.client.Notes.UpdateMergeRequestNote(repo, number, int(id),
		&gitlab.UpdateMergeRequestNoteOptions{Body: gitlab.Ptr(body)}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return &Comment{ID: int64(n.ID), Body: n.Body}, nil
}

// DeleteBranch implements Provider.
func (p *GitLabProvider) DeleteBranch(ctx context.Context, branch string) error {
	resp, err := p.client.Branches.DeleteBranch(p.projectID, branch, gitlab.WithContext(ctx))
	if err != nil {
		if notFound(resp) {
			return fmt.Errorf("branch %s: %w", branch, ErrNotFound)
		}
		return fmt.Errorf("delete branch: %w", err)
	}
	return nil
}

// CreateIssue implements Provider.
func (p *GitLabProvider) CreateIssue(ctx context.Context, title, body string) (*Issue, error) {
	issue, _, err := p.client.Issues.CreateIssue(p.projectID, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return issueFromGitLab(issue), nil
}

// ListIssues implements Provider.
func (p *GitLabProvider) ListIssues(ctx context.Context, state State) ([]*Issue, error) {
	opts := &gitlab.ListProjectIssuesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	switch state {
	case StateOpen:
		opts.State = gitlab.Ptr("opened")
	case StateClosed:
		opts.State = gitlab.Ptr("closed")
	}

	var result []*Issue
	for {
		issues, resp, err := p.client.Issues.ListProjectIssues(p.projectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, issue := range issues {
			result = append(result, issueFromGitLab(issue))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// PullRefSpec implements Provider.
func (p *GitLabProvider) PullRefSpec() string {
	return "+refs/merge-requests/*:refs/remotes/origin/merge-requests/*"
}

// ParsePullRef implements Provider.
func (p *GitLabProvider) ParsePullRef(name string) (int, bool) {
	return parseNumberedRef(name, "merge-requests")
}

func notFound(resp *gitlab.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func prFromGitLab(mr *gitlab.MergeRequest) *PullRequest {
	result := &PullRequest{
		Number:  mr.IID,
		HTMLURL: mr.WebURL,
		Title:   mr.Title,
		Body:    mr.Description,
		Head:    mr.SourceBranch,
		Base:    mr.TargetBranch,
	}
	switch mr.State {
	case "opened":
		result.State = StateOpen
	case "merged":
		result.State = StateClosed
		result.Merged = true
	default:
		result.State = StateClosed
	}
	return result
}

func issueFromGitLab(i *gitlab.Issue) *Issue {
	state := StateClosed
	if i.State == "opened" {
		state = StateOpen
	}
	return &Issue{
		Number:  i.IID,
		Title:   i.Title,
		Body:    i.Description,
		HTMLURL: i.WebURL,
		State:   state,
	}
}
