package review

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Config selects and authenticates a provider.
type Config struct {
	Kind    string // "github" (default) or "gitlab"
	Repo    string // review repository, "owner/name"
	Token   string
	BaseURL string
	// HTTPClient overrides token authentication for GitHub, e.g. with an
	// App installation token source.
	HTTPClient *http.Client
}

// New builds the provider named by cfg.Kind.
func New(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case "", "github":
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			if cfg.Token == "" {
				return nil, fmt.Errorf("GitHub token is required")
			}
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
			httpClient = oauth2.NewClient(context.Background(), ts)
		}
		return NewGitHubProviderWithClient(httpClient, cfg.Repo, cfg.BaseURL)
	case "gitlab":
		return NewGitLabProvider(cfg.Token, cfg.BaseURL, cfg.Repo)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Kind)
	}
}
