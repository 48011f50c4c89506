package vision

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when the client is built without a service URL.
	ErrNoBaseURL = errors.New("vision: base URL required")

	// ErrEmptyImage is returned when asked to detect on an image with no pixels.
	ErrEmptyImage = errors.New("vision: image has no pixels")
)

// APIError represents a non-2xx response from the vision service.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the service, or the raw body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("vision: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
