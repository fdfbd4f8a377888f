package backend

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"tutorlink/internal/session"
)

// renewedTokenHeader is set by the server on responses that carry a freshly
// minted access token; the client adopts it for subsequent requests.
const renewedTokenHeader = "x-auth-token"

// refreshFunc exchanges a refresh token for a new token pair. Injected so
// transport tests can observe and fake the exchange.
type refreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// authTransport is the single mandatory integration point every outbound
// API call passes through. It attaches the session's bearer token, adopts
// renewed tokens reported by the server, and on a 401/403 performs exactly
// one refresh-token exchange before retrying the original request once.
// If the refresh itself fails the session is invalidated, forcing a logout.
type authTransport struct {
	base    http.RoundTripper
	session *session.Session
	refresh refreshFunc
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(t.withAuth(req))
	if err != nil {
		return nil, err
	}
	t.adoptRenewedToken(resp)

	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	if t.refresh == nil || !t.session.LoggedIn() || t.session.RefreshToken() == "" {
		return resp, nil
	}
	retry, ok := t.replayable(req)
	if !ok {
		return resp, nil
	}

	token, refreshErr := t.refresh(req.Context(), t.session.RefreshToken())
	if refreshErr != nil {
		log.Warn().Err(refreshErr).Msg("Token refresh failed, invalidating session")
		t.session.Invalidate()
		return resp, nil
	}

	t.session.SaveToken(token.AccessToken)
	if token.RefreshToken != "" {
		t.session.SaveRefreshToken(token.RefreshToken)
	}
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("Retrying request with refreshed token")

	resp.Body.Close()
	retried, err := t.base.RoundTrip(t.withAuth(retry))
	if err != nil {
		return nil, err
	}
	t.adoptRenewedToken(retried)
	return retried, nil
}

// withAuth returns a clone of req with exactly one Authorization header when
// the session holds a token, and the request untouched otherwise.
func (t *authTransport) withAuth(req *http.Request) *http.Request {
	token := t.session.Token()
	if token == "" {
		return req
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return clone
}

// adoptRenewedToken stores a server-pushed replacement token, if present.
func (t *authTransport) adoptRenewedToken(resp *http.Response) {
	if token := resp.Header.Get(renewedTokenHeader); token != "" {
		t.session.SaveToken(token)
	}
}

// replayable rebuilds a request so it can be sent a second time. Requests
// with a consumed, non-rewindable body cannot be retried.
func (t *authTransport) replayable(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone.Body = body
	return clone, true
}
