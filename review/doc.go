// Package review talks to the service hosting the review repository and
// the sponsoring repositories.
//
// Core types:
//   - Provider: interface for review requests, comments, issues and branches
//   - GitHubProvider / GitLabProvider: hosted implementations
//   - MockProvider: function-field mock; Fake: stateful in-memory host
//
// Example usage:
//
//	p, err := review.New(review.Config{Repo: "org/staging", Token: token})
//	pr, err := p.CreatePullRequest(ctx, review.Options{
//	    Title: "Ingest x.tar.gz",
//	    Head:  "x.tar.gz",
//	    Base:  "main",
//	})
package review
