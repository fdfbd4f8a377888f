package backend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// oauthConfig builds the password-grant configuration for the marketplace
// token endpoint. The API identifies clients by a public client id carried
// in the request body, so the auth style is forced to params.
func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// plainContext routes oauth2's internal HTTP calls through the unauthenticated
// client. The token endpoint must never receive a bearer header or trigger
// the 401 refresh path, or the exchange would recurse into itself.
func (c *Client) plainContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.plain)
}

// ExchangePassword performs the OAuth password grant against /oauth/token.
// A rejected grant maps to ErrInvalidCredentials; transport failures map to
// ErrNetworkUnavailable.
func (c *Client) ExchangePassword(ctx context.Context, username, password string) (*oauth2.Token, error) {
	token, err := c.oauthConfig().PasswordCredentialsToken(c.plainContext(ctx), username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, retrieveErr.Response.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return token, nil
}

// ExchangeRefresh mints a new access token from a refresh token.
func (c *Client) ExchangeRefresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.oauthConfig().TokenSource(c.plainContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, retrieveErr.Response.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return token, nil
}
