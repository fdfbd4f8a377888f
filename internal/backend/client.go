// Package backend is the HTTP client for the tutoring marketplace REST API.
//
// Every request is dispatched through an auth round tripper that attaches
// the session's bearer token, adopts server-renewed tokens and performs a
// single refresh-and-retry on 401/403 responses. The token endpoint itself
// bypasses that round tripper to avoid recursion.
//
// Methods return the package's error taxonomy: ErrNetworkUnavailable for
// transport failures, ErrInvalidCredentials for rejected grants, and
// *APIError for non-2xx business responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tutorlink/internal/models"
	"tutorlink/internal/session"
	"tutorlink/pkg/config"
)

// Client talks to the marketplace API on behalf of one session.
type Client struct {
	baseURL  string
	clientID string
	session  *session.Session

	// http carries the auth round tripper; plain is the bare client used
	// for the token endpoint.
	http  *http.Client
	plain *http.Client
}

// New creates a client for the API at cfg.BaseURL, authenticated by sess.
func New(cfg *config.BackendConfig, sess *session.Session) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		session:  sess,
		plain:    &http.Client{Timeout: cfg.Timeout},
	}
	c.http = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &authTransport{
			base:    http.DefaultTransport,
			session: sess,
			refresh: c.ExchangeRefresh,
		},
	}
	return c
}

// do performs one API call: body is JSON-encoded when non-nil, the response
// is decoded into out when out is non-nil. Non-2xx statuses are returned as
// *APIError with the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	data, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// doRaw is do without response decoding; it returns the raw body so callers
// can run polymorphic decoding themselves.
func (c *Client) doRaw(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}
	return data, nil
}

// Register creates a new account. The profile must carry the role tag, the
// registration password and the role-specific fields; the server echoes the
// created account back.
func (c *Client) Register(ctx context.Context, profile models.Profile) (models.Profile, error) {
	data, err := c.doRaw(ctx, http.MethodPost, "/register", profile)
	if err != nil {
		return nil, err
	}
	return models.DecodeProfile(data)
}

// Profile fetches the authenticated user's own profile, decoded into the
// variant selected by its role tag.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	data, err := c.doRaw(ctx, http.MethodGet, "/profile", nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeProfile(data)
}

// Student fetches a student's full profile.
func (c *Client) Student(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := c.do(ctx, http.MethodGet, "/student/"+id.String()+"/profile", nil, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateStudent replaces a student's profile and returns the stored result.
func (c *Client) UpdateStudent(ctx context.Context, student *models.Student) (*models.Student, error) {
	var updated models.Student
	if err := c.do(ctx, http.MethodPost, "/student/"+student.ID.String()+"/profile", student, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Tutor fetches a tutor's extended record, including the nullable bio, price
// and approval status that drive onboarding.
func (c *Client) Tutor(ctx context.Context, id uuid.UUID) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := c.do(ctx, http.MethodGet, "/tutor/"+id.String()+"/profile", nil, &tutor); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// UpdateTutor replaces a tutor's profile and returns the stored result.
// Updating a rejected profile moves the tutor back into review.
func (c *Client) UpdateTutor(ctx context.Context, tutor *models.Tutor) (*models.Tutor, error) {
	var updated models.Tutor
	if err := c.do(ctx, http.MethodPost, "/tutor/"+tutor.ID.String()+"/profile", tutor, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Subjects lists the global subject catalog.
func (c *Client) Subjects(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := c.do(ctx, http.MethodGet, "/subject", nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// CreateSubject adds a subject to the catalog. Admin only.
func (c *Client) CreateSubject(ctx context.Context, name string) (*models.Subject, error) {
	body := map[string]string{"name": name}
	var subject models.Subject
	if err := c.do(ctx, http.MethodPut, "/subject", body, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

// DeleteSubject removes a subject from the catalog. Admin only.
func (c *Client) DeleteSubject(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/subject/"+id.String(), nil, nil)
}

// TutorSearch holds the optional filters for SearchTutors. Zero values are
// omitted from the query string.
type TutorSearch struct {
	Name     string
	Location string
	MaxPrice *float64
	Query    string
}

// SearchTutors finds approved tutors matching the filter.
func (c *Client) SearchTutors(ctx context.Context, filter TutorSearch) ([]*models.Tutor, error) {
	params := url.Values{}
	if filter.Name != "" {
		params.Set("name", filter.Name)
	}
	if filter.Location != "" {
		params.Set("location", filter.Location)
	}
	if filter.MaxPrice != nil {
		params.Set("price", fmt.Sprintf("%g", *filter.MaxPrice))
	}
	if filter.Query != "" {
		params.Set("q", filter.Query)
	}

	path := "/search/tutors"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var tutors []*models.Tutor
	if err := c.do(ctx, http.MethodGet, path, nil, &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

// MyTutors lists the tutors the logged-in student has conversations with.
func (c *Client) MyTutors(ctx context.Context) ([]*models.Tutor, error) {
	var tutors []*models.Tutor
	if err := c.do(ctx, http.MethodGet, "/student/tutors", nil, &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

// MyTutees lists the students the logged-in tutor teaches.
func (c *Client) MyTutees(ctx context.Context) ([]*models.Student, error) {
	var students []*models.Student
	if err := c.do(ctx, http.MethodGet, "/tutor/tutees", nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// StudentRequests lists students whose conversation requests await the
// logged-in tutor's decision.
func (c *Client) StudentRequests(ctx context.Context) ([]*models.Student, error) {
	var students []*models.Student
	if err := c.do(ctx, http.MethodGet, "/tutor/requests", nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

// TutorsAwaitingApproval lists tutors pending moderation. Admin only.
func (c *Client) TutorsAwaitingApproval(ctx context.Context) ([]*models.Tutor, error) {
	var tutors []*models.Tutor
	if err := c.do(ctx, http.MethodGet, "/admin/tutor", nil, &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

// ReviewTutor records an approve/reject decision for a tutor. The reason is
// surfaced to rejected tutors at login. Admin only.
func (c *Client) ReviewTutor(ctx context.Context, id uuid.UUID, approved bool, reason string) error {
	body := map[string]interface{}{"status": approved}
	if reason != "" {
		body["reason"] = reason
	}
	return c.do(ctx, http.MethodPost, "/admin/tutor/"+id.String(), body, nil)
}
