// Package services implements the client's application logic on top of the
// backend API: the login/logout lifecycle with tutor onboarding
// classification, and the conversation synchronizer that merges REST
// fetches, optimistic local sends and live push events into one ordered
// message view.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"tutorlink/internal/models"
	"tutorlink/internal/session"
)

// ErrProfileFetchFailed is returned when the token exchange succeeded but
// the follow-up profile fetch did not. The session keeps its tokens so the
// user can simply retry.
var ErrProfileFetchFailed = errors.New("profile fetch failed")

// AuthAPI is the slice of the backend client AuthService depends on.
type AuthAPI interface {
	ExchangePassword(ctx context.Context, username, password string) (*oauth2.Token, error)
	Profile(ctx context.Context) (models.Profile, error)
	Tutor(ctx context.Context, id uuid.UUID) (*models.Tutor, error)
}

// Onboarding classifies a tutor account after login; it decides which home
// screen variant the caller routes to. The values follow the moderation
// pipeline: a tutor starts with no profile, submits one, awaits review, and
// ends up rejected or approved.
type Onboarding int

const (
	// OnboardingNoProfile means the tutor has not created a tutoring
	// profile yet (null price and bio on the extended record).
	OnboardingNoProfile Onboarding = iota
	// OnboardingPending means the profile exists but has not been reviewed.
	OnboardingPending
	// OnboardingRejected means a moderator rejected the profile; the
	// LoginResult carries the reason.
	OnboardingRejected
	// OnboardingApproved means the tutor is live.
	OnboardingApproved
	// OnboardingNone applies to students and admins, which have no
	// onboarding flow.
	OnboardingNone
)

// String returns a human-readable onboarding label.
func (o Onboarding) String() string {
	switch o {
	case OnboardingNoProfile:
		return "no profile"
	case OnboardingPending:
		return "pending review"
	case OnboardingRejected:
		return "rejected"
	case OnboardingApproved:
		return "approved"
	case OnboardingNone:
		return "none"
	default:
		return fmt.Sprintf("onboarding(%d)", int(o))
	}
}

// LoginResult reports a successful login: the authenticated profile and,
// for tutors, the onboarding classification with any rejection reason.
type LoginResult struct {
	Profile    models.Profile
	Onboarding Onboarding
	Reason     string
}

// AuthService owns the login/logout lifecycle. It coordinates the token
// exchange, credential storage and the profile fetches that determine where
// the user lands.
type AuthService struct {
	api     AuthAPI
	session *session.Session
}

// NewAuthService creates an auth service bound to one session.
func NewAuthService(api AuthAPI, sess *session.Session) *AuthService {
	return &AuthService{api: api, session: sess}
}

// Login exchanges credentials for a token pair, stores them in the session,
// fetches the authenticated profile, and for tutors fetches the extended
// record to classify onboarding.
//
// Failures map to the backend taxonomy: ErrInvalidCredentials when the
// grant is rejected, ErrNetworkUnavailable on transport failure, and
// ErrProfileFetchFailed when a post-login fetch fails. None of them trigger
// an automatic retry; the previous session state is only replaced once the
// exchange succeeds.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	token, err := s.api.ExchangePassword(ctx, email, password)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Login exchange failed")
		return nil, err
	}

	s.session.SaveToken(token.AccessToken)
	s.session.SaveRefreshToken(token.RefreshToken)
	s.session.SaveEmail(email)
	s.session.SavePassword(password)

	profile, err := s.api.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	s.session.SetUser(profile)

	result := &LoginResult{Profile: profile, Onboarding: OnboardingNone}

	tutor, ok := profile.(*models.Tutor)
	if !ok {
		log.Info().
			Str("user_id", profile.Account().ID.String()).
			Str("role", string(profile.Account().Role)).
			Msg("Logged in")
		return result, nil
	}

	// The /profile payload omits the tutor's moderation fields; the
	// extended record decides which home screen a tutor lands on.
	full, err := s.api.Tutor(ctx, tutor.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	s.session.SetUser(full)
	result.Profile = full

	switch {
	case !full.HasProfile():
		result.Onboarding = OnboardingNoProfile
	case full.Approved == nil:
		result.Onboarding = OnboardingPending
	case !*full.Approved:
		result.Onboarding = OnboardingRejected
		result.Reason = full.Reason
	default:
		result.Onboarding = OnboardingApproved
	}

	log.Info().
		Str("user_id", full.ID.String()).
		Stringer("onboarding", result.Onboarding).
		Msg("Tutor logged in")
	return result, nil
}

// Logout tears down the session. Safe to call when already logged out.
func (s *AuthService) Logout() {
	s.session.Invalidate()
}
