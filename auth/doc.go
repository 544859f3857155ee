// Package auth authenticates against GitHub as a GitHub App.
//
// A personal access token is the simplest credential for the review
// repository, but installations of a GitHub App get their own rate limits
// and do not depend on a user account. This package signs the short-lived
// RS256 app token and exchanges it for installation tokens.
//
// # Usage
//
//	key, err := auth.LoadPrivateKey("/etc/ingestflow/app.pem")
//	src := &auth.InstallationTokenSource{
//	    App:            auth.AppConfig{AppID: 12345, PrivateKey: key},
//	    InstallationID: 678,
//	}
//	httpClient := auth.NewInstallationClient(ctx, src)
//
//	provider, err := review.New(review.Config{
//	    Repo:       "org/staging",
//	    HTTPClient: httpClient,
//	})
package auth
