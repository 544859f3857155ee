package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v57/github"
	nanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

// GitHub rejects app tokens that live longer than ten minutes.
const (
	DefaultAppTokenTTL = 9 * time.Minute
	MaxAppTokenTTL     = 10 * time.Minute

	// clockSkew backdates iat so small clock drift does not make the
	// token "issued in the future".
	clockSkew = 60 * time.Second
)

// AppConfig identifies a GitHub App.
type AppConfig struct {
	// AppID is the numeric application ID, used as the token issuer.
	AppID int64

	// PrivateKey is the app's RSA signing key.
	PrivateKey *rsa.PrivateKey

	// TTL is the lifetime of app tokens.
	// Defaults to DefaultAppTokenTTL if zero.
	TTL time.Duration
}

func (c AppConfig) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultAppTokenTTL
	}
	if c.TTL > MaxAppTokenTTL {
		return MaxAppTokenTTL
	}
	return c.TTL
}

// LoadPrivateKey reads a PEM encoded RSA private key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// GenerateAppToken creates the RS256 JWT an app presents to exchange for
// installation tokens.
func GenerateAppToken(cfg AppConfig) (string, error) {
	if cfg.AppID <= 0 {
		return "", ErrMissingAppID
	}
	if cfg.PrivateKey == nil {
		return "", ErrInvalidKey
	}

	tokenID, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(cfg.AppID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ttl())),
		ID:        tokenID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(cfg.PrivateKey)
}

// InstallationTokenSource is an oauth2.TokenSource that exchanges a fresh
// app token for an installation access token on every call. Wrap it with
// oauth2.ReuseTokenSource (NewInstallationClient does) to cache tokens
// until they expire.
type InstallationTokenSource struct {
	App            AppConfig
	InstallationID int64

	// BaseURL selects a GitHub Enterprise API endpoint; empty means github.com.
	BaseURL string

	// HTTPClient is used for the exchange; nil means http.DefaultClient.
	HTTPClient *http.Client

	mu     sync.Mutex
	client *github.Client
}

// Token implements oauth2.TokenSource.
func (s *InstallationTokenSource) Token() (*oauth2.Token, error) {
	if s.InstallationID <= 0 {
		return nil, ErrMissingInstallationID
	}

	appToken, err := GenerateAppToken(s.App)
	if err != nil {
		return nil, err
	}

	client, err := s.baseClient()
	if err != nil {
		return nil, err
	}

	tok, _, err := client.WithAuthToken(appToken).Apps.CreateInstallationToken(
		context.Background(), s.InstallationID, nil)
	if err != nil {
		return nil, fmt.Errorf("create installation token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: tok.GetToken(),
		Expiry:      tok.GetExpiresAt().Time,
	}, nil
}

func (s *InstallationTokenSource) baseClient() (*github.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	client := github.NewClient(s.HTTPClient)
	if s.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(s.BaseURL, s.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("GitHub base URL: %w", err)
		}
	}
	s.client = client
	return client, nil
}

// NewInstallationClient returns an HTTP client authenticated as the app
// installation. Tokens are refreshed shortly before they expire.
func NewInstallationClient(ctx context.Context, src *InstallationTokenSource) *http.Client {
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, src))
}
