// Package auth turns tenant credentials into an HTTP client that attaches a
// machine-to-machine access token to every request.
package auth

import (
	"context"
	"net/http"

	"github.com/mailtmpl/cli/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ManagementScope grants access to the full management API.
const ManagementScope = "all"

// Credentials configure the client-credentials grant.
func Credentials(cfg *config.Config) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL(),
		Scopes:       []string{ManagementScope},
		EndpointParams: map[string][]string{
			"resource": {cfg.Resource()},
		},
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// NewHTTPClient returns an authenticated client. Tokens are fetched lazily on
// the first request and refreshed when they expire. The configured timeout
// applies to both the token exchange and API calls.
func NewHTTPClient(ctx context.Context, cfg *config.Config) *http.Client {
	base := &http.Client{Timeout: cfg.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	client := Credentials(cfg).Client(ctx)
	client.Timeout = cfg.Timeout
	return client
}
