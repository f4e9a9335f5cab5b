package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured indicates the site URL or credentials are missing.
	ErrNotConfigured = errors.New("confluence configuration is incomplete")

	// ErrEmptyPageID indicates an empty page identifier.
	ErrEmptyPageID = errors.New("page ID cannot be empty")

	// ErrEmptyQuery indicates an empty search query.
	ErrEmptyQuery = errors.New("search query cannot be empty")

	// ErrInvalidLimit indicates a search limit outside 1..100.
	ErrInvalidLimit = errors.New("limit must be between 1 and 100")

	// ErrNoContent indicates a page without a storage-format body.
	ErrNoContent = errors.New("page has no content")

	// ErrEmptyAfterCleaning indicates a page whose body has no text.
	ErrEmptyAfterCleaning = errors.New("page content is empty after cleaning")

	// ErrInvalidMaxAttempts indicates that maxAttempts must be greater than 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// APIError is a failed Confluence API call.
// StatusCode is 0 for transport failures and timeouts.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is the server's Retry-After hint for rate-limited calls.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return e.Message
}

// Retryable reports whether repeating the call may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is worth retrying.
// Caller cancellation and client errors are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func newStatusError(status int, detail string) *APIError {
	switch {
	case status == http.StatusUnauthorized:
		return &APIError{StatusCode: status, Message: "Authentication failed. Check your credentials."}
	case status == http.StatusNotFound:
		return &APIError{StatusCode: status, Message: "Resource not found."}
	case status >= http.StatusInternalServerError:
		return &APIError{StatusCode: status, Message: fmt.Sprintf("Confluence server error: %d", status)}
	}
	msg := fmt.Sprintf("HTTP error: %d", status)
	if detail != "" {
		msg += " - " + detail
	}
	return &APIError{StatusCode: status, Message: msg}
}
