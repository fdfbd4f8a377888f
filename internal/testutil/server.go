package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorlink/internal/models"
)

// MockBackend is an in-process marketplace API for exercising the HTTP
// client: a password/refresh token endpoint plus bearer-gated profile and
// thread routes serving canned fixtures. Tests mutate its exported fields
// between requests; all access is serialized through one mutex.
type MockBackend struct {
	Server *httptest.Server

	mu sync.Mutex

	// Accounts maps email to password for the password grant.
	Accounts map[string]string

	// ProfileJSON is served verbatim from GET /profile so tests control the
	// role tag and nullable fields exactly.
	ProfileJSON []byte

	// Tutors and Threads back the /tutor/{id}/profile and /thread routes.
	Tutors  map[uuid.UUID]*models.Tutor
	Threads map[uuid.UUID]*models.MessageThread

	// SenderID stamps messages appended through POST /thread/{id}.
	SenderID uuid.UUID

	// RenewToken, when non-empty, is attached to every authenticated
	// response as the x-auth-token header and accepted from then on.
	RenewToken string

	validTokens   map[string]bool
	refreshTokens map[string]string

	// TokenRequests counts calls to the token endpoint. LastAuth records
	// the Authorization header values of the most recent gated request.
	TokenRequests int
	LastAuth      []string

	tokenSeq int
}

// NewMockBackend starts the mock API and registers its shutdown with t.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()

	b := &MockBackend{
		Accounts:      make(map[string]string),
		Tutors:        make(map[uuid.UUID]*models.Tutor),
		Threads:       make(map[uuid.UUID]*models.MessageThread),
		validTokens:   make(map[string]bool),
		refreshTokens: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Post("/oauth/token", b.handleToken)
	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)
		r.Get("/profile", b.handleProfile)
		r.Get("/tutor/{id}/profile", b.handleTutor)
		r.Get("/thread", b.handleInbox)
		r.Get("/thread/{id}", b.handleThread)
		r.Post("/thread/{id}", b.handleSend)
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base URL of the mock API.
func (b *MockBackend) URL() string {
	return b.Server.URL
}

// IssueToken registers an access/refresh token pair for email, as if the
// client had already logged in.
func (b *MockBackend) IssueToken(email string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

// ExpireToken revokes an access token so the next gated request gets a 401.
func (b *MockBackend) ExpireToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.validTokens, token)
}

func (b *MockBackend) issueLocked(email string) (access, refresh string) {
	b.tokenSeq++
	access = fmt.Sprintf("access-%d", b.tokenSeq)
	refresh = fmt.Sprintf("refresh-%d", b.tokenSeq)
	b.validTokens[access] = true
	b.refreshTokens[refresh] = email
	return access, refresh
}

func (b *MockBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed form body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.TokenRequests++

	var email string
	switch r.PostForm.Get("grant_type") {
	case "password":
		email = r.PostForm.Get("username")
		password, ok := b.Accounts[email]
		if !ok || password != r.PostForm.Get("password") {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
	case "refresh_token":
		var ok bool
		email, ok = b.refreshTokens[r.PostForm.Get("refresh_token")]
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}

	access, refresh := b.issueLocked(email)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"scope":         "*",
		"expires_in":    3600,
	})
}

func (b *MockBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.LastAuth = r.Header.Values("Authorization")

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		valid := b.validTokens[token]
		renew := b.RenewToken
		if renew != "" {
			b.validTokens[renew] = true
		}
		b.mu.Unlock()

		if !valid {
			writeError(w, http.StatusUnauthorized, "Token expired")
			return
		}
		if renew != "" {
			w.Header().Set("x-auth-token", renew)
		}
		next.ServeHTTP(w, r)
	})
}

func (b *MockBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	profile := b.ProfileJSON
	b.mu.Unlock()

	if profile == nil {
		writeError(w, http.StatusNotFound, "No profile")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(profile)
}

func (b *MockBackend) handleTutor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tutor id")
		return
	}

	b.mu.Lock()
	tutor := b.Tutors[id]
	b.mu.Unlock()

	if tutor == nil {
		writeError(w, http.StatusNotFound, "Tutor not found")
		return
	}
	writeJSON(w, http.StatusOK, tutor)
}

func (b *MockBackend) handleInbox(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	threads := make([]*models.MessageThread, 0, len(b.Threads))
	for _, thread := range b.Threads {
		threads = append(threads, thread)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, threads)
}

func (b *MockBackend) handleThread(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid thread id")
		return
	}

	b.mu.Lock()
	thread := b.Threads[id]
	b.mu.Unlock()

	if thread == nil {
		writeError(w, http.StatusNotFound, "Thread not found")
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (b *MockBackend) handleSend(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid thread id")
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed message body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	thread := b.Threads[id]
	if thread == nil {
		writeError(w, http.StatusNotFound, "Thread not found")
		return
	}

	thread.Messages = append(thread.Messages, &models.Message{
		ID:        uuid.New(),
		SenderID:  b.SenderID,
		Body:      payload.Message,
		Timestamp: "2024-03-01T10:00:00Z",
		State:     models.MessageSent,
	})
	thread.MessageCount = len(thread.Messages)
	writeJSON(w, http.StatusOK, thread)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
