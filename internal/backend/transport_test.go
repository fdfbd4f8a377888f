package backend

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorlink/internal/session"
	"tutorlink/internal/testutil"
	"tutorlink/pkg/config"
)

func setupClient(t *testing.T, onLoggedOut func()) (*Client, *testutil.MockBackend, *session.Session) {
	t.Helper()

	mock := testutil.NewMockBackend(t)
	sess := session.New(nil, onLoggedOut)
	client := New(&config.BackendConfig{
		BaseURL:  mock.URL(),
		ClientID: "test-client",
		Timeout:  5 * time.Second,
	}, sess)
	return client, mock, sess
}

func loginSession(t *testing.T, mock *testutil.MockBackend, sess *session.Session, email string) {
	t.Helper()

	access, refresh := mock.IssueToken(email)
	sess.SaveToken(access)
	sess.SaveRefreshToken(refresh)
	sess.SaveEmail(email)
}

func studentJSON(t *testing.T) []byte {
	t.Helper()

	data, err := json.Marshal(testutil.TestStudent())
	require.NoError(t, err)
	return data
}

func TestAuthTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("requests without a token carry no auth header", func(t *testing.T) {
		client, mock, _ := setupClient(t, nil)
		mock.ProfileJSON = studentJSON(t)

		_, err := client.Profile(ctx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.Empty(t, mock.LastAuth)
	})

	t.Run("authenticated requests carry exactly one bearer header", func(t *testing.T) {
		client, mock, sess := setupClient(t, nil)
		mock.ProfileJSON = studentJSON(t)
		loginSession(t, mock, sess, "ada@example.com")

		_, err := client.Profile(ctx)
		require.NoError(t, err)

		require.Len(t, mock.LastAuth, 1)
		assert.Equal(t, "Bearer "+sess.Token(), mock.LastAuth[0])
	})

	t.Run("a renewed token from the server is adopted", func(t *testing.T) {
		client, mock, sess := setupClient(t, nil)
		mock.ProfileJSON = studentJSON(t)
		loginSession(t, mock, sess, "ada@example.com")
		mock.RenewToken = "minted-by-server"

		_, err := client.Profile(ctx)
		require.NoError(t, err)

		assert.Equal(t, "minted-by-server", sess.Token())
	})

	t.Run("an expired token is refreshed and the request retried once", func(t *testing.T) {
		client, mock, sess := setupClient(t, nil)
		mock.ProfileJSON = studentJSON(t)
		loginSession(t, mock, sess, "ada@example.com")

		expired := sess.Token()
		mock.ExpireToken(expired)

		profile, err := client.Profile(ctx)
		require.NoError(t, err)
		assert.NotNil(t, profile)

		assert.Equal(t, 1, mock.TokenRequests)
		assert.NotEqual(t, expired, sess.Token())
		require.Len(t, mock.LastAuth, 1)
		assert.Equal(t, "Bearer "+sess.Token(), mock.LastAuth[0])
	})

	t.Run("a failed refresh invalidates the session", func(t *testing.T) {
		loggedOut := 0
		client, mock, sess := setupClient(t, func() { loggedOut++ })
		mock.ProfileJSON = studentJSON(t)

		// Tokens the mock never issued: the first request 401s and the
		// refresh grant is rejected too.
		sess.SaveToken("stale-access")
		sess.SaveRefreshToken("stale-refresh")

		_, err := client.Profile(ctx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 401, apiErr.Status)
		assert.False(t, sess.LoggedIn())
		assert.Equal(t, 1, loggedOut)
	})

	t.Run("refresh is not attempted while logged out", func(t *testing.T) {
		client, mock, _ := setupClient(t, nil)
		mock.ProfileJSON = studentJSON(t)

		_, err := client.Profile(ctx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Zero(t, mock.TokenRequests)
	})
}

func TestExchangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("a valid grant returns a token pair", func(t *testing.T) {
		client, mock, _ := setupClient(t, nil)
		mock.Accounts["ada@example.com"] = "hunter2"

		token, err := client.ExchangePassword(ctx, "ada@example.com", "hunter2")
		require.NoError(t, err)

		assert.NotEmpty(t, token.AccessToken)
		assert.NotEmpty(t, token.RefreshToken)
	})

	t.Run("a rejected grant maps to ErrInvalidCredentials", func(t *testing.T) {
		client, mock, _ := setupClient(t, nil)
		mock.Accounts["ada@example.com"] = "hunter2"

		_, err := client.ExchangePassword(ctx, "ada@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("an unreachable server maps to ErrNetworkUnavailable", func(t *testing.T) {
		sess := session.New(nil, nil)
		client := New(&config.BackendConfig{
			BaseURL:  "http://127.0.0.1:1",
			ClientID: "test-client",
			Timeout:  time.Second,
		}, sess)

		_, err := client.ExchangePassword(ctx, "ada@example.com", "hunter2")
		assert.ErrorIs(t, err, ErrNetworkUnavailable)
	})
}

func TestExchangeRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("a valid refresh token mints a new pair", func(t *testing.T) {
		client, mock, _ := setupClient(t, nil)
		_, refresh := mock.IssueToken("ada@example.com")

		token, err := client.ExchangeRefresh(ctx, refresh)
		require.NoError(t, err)

		assert.NotEmpty(t, token.AccessToken)
	})

	t.Run("an unknown refresh token maps to ErrInvalidCredentials", func(t *testing.T) {
		client, _, _ := setupClient(t, nil)

		_, err := client.ExchangeRefresh(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Status: 404, Message: "Thread not found"}
	assert.Contains(t, err.Error(), "Thread not found")
	assert.Contains(t, err.Error(), "404")
}
