// Package session holds the authentication state shared by every network
// call in the client: the bearer/refresh token pair, the stored email and
// the authenticated identity. It is the single source of truth for "who is
// logged in and with what credentials".
//
// A Session is an explicit, constructed object handed to the components that
// need it rather than process-global state, so tests can build isolated
// sessions freely. All reads and writes go through a RWMutex: token writes
// happen on login, logout and refresh while every authenticated request
// reads the token, and the two must never observe a torn update.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tutorlink/internal/models"
)

// Credentials is the persisted subset of the session: what survives an
// application restart. The password is transient by design and never
// written to disk.
type Credentials struct {
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session is the mutable authentication state. The zero value is not usable;
// construct one with New.
type Session struct {
	mu       sync.RWMutex
	creds    Credentials
	password string
	user     models.Profile

	store       Store
	onLoggedOut func()
}

// New creates a session backed by the given store, restoring any previously
// persisted credentials. onLoggedOut is invoked synchronously whenever
// Invalidate tears down a logged-in session; pass nil if no notification is
// needed. The callback is a typed construction-time dependency, never
// discovered at runtime.
func New(store Store, onLoggedOut func()) *Session {
	s := &Session{
		store:       store,
		onLoggedOut: onLoggedOut,
	}

	if store != nil {
		creds, err := store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to restore persisted credentials")
		} else if creds != nil {
			s.creds = *creds
		}
	}

	return s
}

// LoggedIn reports whether the session holds an access token.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken != ""
}

// Token returns the current access token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken
}

// SaveToken stores a new access token and persists it.
func (s *Session) SaveToken(token string) {
	s.mu.Lock()
	s.creds.AccessToken = token
	s.persistLocked()
	s.mu.Unlock()
}

// RefreshToken returns the current refresh token, or "" when absent.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

// SaveRefreshToken stores a new refresh token and persists it.
func (s *Session) SaveRefreshToken(token string) {
	s.mu.Lock()
	s.creds.RefreshToken = token
	s.persistLocked()
	s.mu.Unlock()
}

// Email returns the stored account email.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Email
}

// SaveEmail stores the account email and persists it.
func (s *Session) SaveEmail(email string) {
	s.mu.Lock()
	s.creds.Email = email
	s.persistLocked()
	s.mu.Unlock()
}

// Password returns the transient login password, if one was saved this run.
func (s *Session) Password() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.password
}

// SavePassword keeps the password in memory for the duration of the process.
// It is never persisted.
func (s *Session) SavePassword(password string) {
	s.mu.Lock()
	s.password = password
	s.mu.Unlock()
}

// User returns the authenticated identity, or nil when no profile has been
// fetched yet.
func (s *Session) User() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser replaces the in-memory identity. Called after profile fetches and
// profile edits to keep the identity current.
func (s *Session) SetUser(user models.Profile) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// UserID returns the authenticated user's id, or uuid.Nil when logged out.
func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return uuid.Nil
	}
	return s.user.Account().ID
}

// Invalidate tears the session down: it clears tokens, email, password and
// identity, wipes the persisted credentials and notifies the logged-out
// listener. Invalidating an already logged-out session is a no-op.
func (s *Session) Invalidate() {
	s.mu.Lock()
	wasLoggedIn := s.creds.AccessToken != ""
	s.creds = Credentials{}
	s.password = ""
	s.user = nil
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear persisted credentials")
		}
	}
	s.mu.Unlock()

	if wasLoggedIn {
		log.Info().Msg("Session invalidated")
		if s.onLoggedOut != nil {
			s.onLoggedOut()
		}
	}
}

// persistLocked writes the current credentials through the store. Callers
// must hold the write lock.
func (s *Session) persistLocked() {
	if s.store == nil {
		return
	}
	creds := s.creds
	if err := s.store.Save(&creds); err != nil {
		log.Warn().Err(err).Msg("Failed to persist credentials")
	}
}
