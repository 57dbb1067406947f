// Package auth attaches OpenSky credentials to outgoing requests.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the OpenSky OpenID Connect token endpoint.
const DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

// Authenticator attaches credentials to a request before it is sent.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// Basic sends HTTP basic credentials.
type Basic struct {
	Username string
	Password string
}

func (b Basic) Authenticate(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// ClientCredentials sends a bearer token obtained with the OAuth2 client
// credentials grant. Tokens are cached until shortly before they expire.
type ClientCredentials struct {
	src oauth2.TokenSource
}

// NewClientCredentials creates an authenticator for the given API client.
// ctx is used for token requests; an empty tokenURL selects
// DefaultTokenURL.
func NewClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string) *ClientCredentials {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &ClientCredentials{src: cfg.TokenSource(ctx)}
}

func (c *ClientCredentials) Authenticate(req *http.Request) error {
	tok, err := c.src.Token()
	if err != nil {
		return fmt.Errorf("failed to fetch access token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
