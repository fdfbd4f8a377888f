package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"tutorlink/internal/backend"
	"tutorlink/internal/models"
	"tutorlink/internal/session"
	"tutorlink/internal/testutil"
)

// MockAuthAPI is a mock implementation of AuthAPI.
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) ExchangePassword(ctx context.Context, username, password string) (*oauth2.Token, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockAuthAPI) Profile(ctx context.Context) (models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Profile), args.Error(1)
}

func (m *MockAuthAPI) Tutor(ctx context.Context, id uuid.UUID) (*models.Tutor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tutor), args.Error(1)
}

func setupAuthService(t *testing.T) (*AuthService, *MockAuthAPI, *session.Session) {
	t.Helper()

	api := new(MockAuthAPI)
	sess := session.New(nil, nil)
	return NewAuthService(api, sess), api, sess
}

func testToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "AAA", RefreshToken: "BBB", TokenType: "Bearer"}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("student login stores tokens and identity", func(t *testing.T) {
		svc, api, sess := setupAuthService(t)
		student := testutil.TestStudent()

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(student), nil)

		result, err := svc.Login(ctx, "foo@example.com", "password1")
		require.NoError(t, err)

		assert.Equal(t, OnboardingNone, result.Onboarding)
		assert.Equal(t, student, result.Profile)
		assert.Equal(t, "AAA", sess.Token())
		assert.Equal(t, "BBB", sess.RefreshToken())
		assert.Equal(t, "foo@example.com", sess.Email())
		assert.Equal(t, student.ID, sess.UserID())
		api.AssertExpectations(t)
	})

	t.Run("admin login needs no extra fetch", func(t *testing.T) {
		svc, api, _ := setupAuthService(t)
		admin := testutil.TestAdmin()

		api.On("ExchangePassword", ctx, "root@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(admin), nil)

		result, err := svc.Login(ctx, "root@example.com", "password1")
		require.NoError(t, err)
		assert.Equal(t, OnboardingNone, result.Onboarding)
		api.AssertNotCalled(t, "Tutor", mock.Anything, mock.Anything)
	})

	t.Run("tutor without profile lands in onboarding", func(t *testing.T) {
		svc, api, sess := setupAuthService(t)
		tutor := testutil.TestTutor()
		tutor.Bio = nil
		tutor.Price = nil
		tutor.Approved = nil

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(&models.Tutor{User: tutor.User}), nil)
		api.On("Tutor", ctx, tutor.ID).Return(tutor, nil)

		result, err := svc.Login(ctx, "foo@example.com", "password1")
		require.NoError(t, err)

		assert.Equal(t, OnboardingNoProfile, result.Onboarding)
		assert.Equal(t, tutor, sess.User(), "session identity must be the extended record")
	})

	t.Run("tutor awaiting review is pending", func(t *testing.T) {
		svc, api, _ := setupAuthService(t)
		tutor := testutil.TestTutor()
		tutor.Approved = nil

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(&models.Tutor{User: tutor.User}), nil)
		api.On("Tutor", ctx, tutor.ID).Return(tutor, nil)

		result, err := svc.Login(ctx, "foo@example.com", "password1")
		require.NoError(t, err)
		assert.Equal(t, OnboardingPending, result.Onboarding)
	})

	t.Run("rejected tutor carries the reason", func(t *testing.T) {
		svc, api, _ := setupAuthService(t)
		tutor := testutil.TestTutor()
		tutor.Approved = testutil.BoolPtr(false)
		tutor.Reason = "incomplete bio"

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(&models.Tutor{User: tutor.User}), nil)
		api.On("Tutor", ctx, tutor.ID).Return(tutor, nil)

		result, err := svc.Login(ctx, "foo@example.com", "password1")
		require.NoError(t, err)

		assert.Equal(t, OnboardingRejected, result.Onboarding)
		assert.Equal(t, "incomplete bio", result.Reason)
	})

	t.Run("approved tutor goes home", func(t *testing.T) {
		svc, api, _ := setupAuthService(t)
		tutor := testutil.TestTutor()
		tutor.Approved = testutil.BoolPtr(true)

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(&models.Tutor{User: tutor.User}), nil)
		api.On("Tutor", ctx, tutor.ID).Return(tutor, nil)

		result, err := svc.Login(ctx, "foo@example.com", "password1")
		require.NoError(t, err)
		assert.Equal(t, OnboardingApproved, result.Onboarding)
	})

	t.Run("rejected grant leaves the session logged out", func(t *testing.T) {
		svc, api, sess := setupAuthService(t)

		api.On("ExchangePassword", ctx, "foo@example.com", "wrong").
			Return(nil, backend.ErrInvalidCredentials)

		_, err := svc.Login(ctx, "foo@example.com", "wrong")
		assert.ErrorIs(t, err, backend.ErrInvalidCredentials)
		assert.False(t, sess.LoggedIn())
	})

	t.Run("profile fetch failure is reported as such", func(t *testing.T) {
		svc, api, sess := setupAuthService(t)

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(nil, backend.ErrNetworkUnavailable)

		_, err := svc.Login(ctx, "foo@example.com", "password1")
		assert.ErrorIs(t, err, ErrProfileFetchFailed)
		assert.True(t, sess.LoggedIn(), "tokens are kept so the user can retry")
	})

	t.Run("tutor extended fetch failure is reported as such", func(t *testing.T) {
		svc, api, _ := setupAuthService(t)
		tutor := testutil.TestTutor()

		api.On("ExchangePassword", ctx, "foo@example.com", "password1").Return(testToken(), nil)
		api.On("Profile", ctx).Return(models.Profile(&models.Tutor{User: tutor.User}), nil)
		api.On("Tutor", ctx, tutor.ID).Return(nil, backend.ErrNetworkUnavailable)

		_, err := svc.Login(ctx, "foo@example.com", "password1")
		assert.ErrorIs(t, err, ErrProfileFetchFailed)
	})
}

func TestLogout(t *testing.T) {
	t.Run("clears the session and is idempotent", func(t *testing.T) {
		svc, _, sess := setupAuthService(t)
		sess.SaveToken("AAA")
		sess.SetUser(testutil.TestStudent())

		svc.Logout()
		svc.Logout()

		assert.False(t, sess.LoggedIn())
		assert.Empty(t, sess.Token())
		assert.Nil(t, sess.User())
	})
}
