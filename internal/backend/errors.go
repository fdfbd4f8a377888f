package backend

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. All of these are user-visible and
// retryable by re-triggering the action; the client performs no automatic
// retry of its own.
var (
	// ErrNetworkUnavailable wraps transport and I/O failures.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrInvalidCredentials is returned when the token endpoint rejects a
	// password grant.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// APIError is a non-2xx business response from the marketplace API, carrying
// the server's message verbatim.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}
