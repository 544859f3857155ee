package lifecycle

import (
	"context"
	"fmt"

	"github.com/randalmurphal/ingestflow/review"
)

// Failure issue titles.
func ingestFailedTitle(payloadKey string) string {
	return "Failed to ingest " + payloadKey
}

func overviewFailedTitle(payloadKey string) string {
	return "Failed to get contents of " + payloadKey
}

// fileIssue opens an issue titled title unless an open one with that title
// exists. It reports whether a new issue was created.
func (m *Machine) fileIssue(ctx context.Context, title, body string) (bool, error) {
	open, err := m.provider.ListIssues(ctx, review.StateOpen)
	if err != nil {
		return false, fmt.Errorf("list open issues: %w", err)
	}
	for _, issue := range open {
		if issue.Title == title {
			m.logger.Info("open issue already exists, not filing another", "title", title, "issue", issue.Number)
			return false, nil
		}
	}

	issue, err := m.provider.CreateIssue(ctx, title, body)
	if err != nil {
		return false, fmt.Errorf("create issue %q: %w", title, err)
	}
	m.logger.Info("filed issue", "title", title, "issue", issue.Number, "url", issue.HTMLURL)
	return true, nil
}
