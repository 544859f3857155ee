package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/randalmurphal/ingestflow/review"
)

// Cache memoizes review-host lookups for the duration of one run. Keys are
// repository name, "repo#number" and comment id; identifiers do not change
// within a run, so entries are never invalidated.
type Cache struct {
	provider review.Provider

	mu       sync.Mutex
	repos    map[string]*review.Repository
	pulls    map[string]*review.PullRequest
	comments map[int64]*review.Comment
	hits     int
	misses   int
}

// NewCache creates an empty cache in front of provider.
func NewCache(provider review.Provider) *Cache {
	return &Cache{
		provider: provider,
		repos:    make(map[string]*review.Repository),
		pulls:    make(map[string]*review.PullRequest),
		comments: make(map[int64]*review.Comment),
	}
}

// Repository returns the named repository.
func (c *Cache) Repository(ctx context.Context, name string) (*review.Repository, error) {
	c.mu.Lock()
	if repo, ok := c.repos[name]; ok {
		c.hits++
		c.mu.Unlock()
		return repo, nil
	}
	c.misses++
	c.mu.Unlock()

	repo, err := c.provider.GetRepository(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.repos[name] = repo
	c.mu.Unlock()
	return repo, nil
}

// PullRequest returns repo#number.
func (c *Cache) PullRequest(ctx context.Context, repo string, number int) (*review.PullRequest, error) {
	key := fmt.Sprintf("%s#%d", repo, number)

	c.mu.Lock()
	if pr, ok := c.pulls[key]; ok {
		c.hits++
		c.mu.Unlock()
		return pr, nil
	}
	c.misses++
	c.mu.Unlock()

	pr, err := c.provider.GetPullRequest(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pulls[key] = pr
	c.mu.Unlock()
	return pr, nil
}

// Comment returns comment id of repo#number.
func (c *Cache) Comment(ctx context.Context, repo string, number int, id int64) (*review.Comment, error) {
	c.mu.Lock()
	if comment, ok := c.comments[id]; ok {
		c.hits++
		c.mu.Unlock()
		return comment, nil
	}
	c.misses++
	c.mu.Unlock()

	comment, err := c.provider.GetComment(ctx, repo, number, id)
	if err != nil {
		return nil, err
	}
	c.Put(comment)
	return comment, nil
}

// Put stores comment, replacing any earlier copy. Edits go through here so
// later annotations append to the current body.
func (c *Cache) Put(comment *review.Comment) {
	if comment == nil {
		return
	}
	c.mu.Lock()
	c.comments[comment.ID] = comment
	c.mu.Unlock()
}

// Stats returns the number of lookups served from and missed by the cache.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
