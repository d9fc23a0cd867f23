package riot

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds returned by Client. StatusError wraps one of them.
var (
	ErrUnavailable = errors.New("riot api unavailable")
	ErrRateLimited = errors.New("riot api rate limited")
	ErrNotFound    = errors.New("riot api resource not found")
	ErrKeyRejected = errors.New("riot api key rejected")
)

// StatusError is a non-200 response from the Riot API.
type StatusError struct {
	StatusCode int
	URL        string
	// RetryAfter is set on 429 responses that carried a Retry-After header.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	switch e.Unwrap() {
	case ErrKeyRejected:
		return fmt.Sprintf("API returned %d - check if your API key is valid", e.StatusCode)
	case ErrNotFound:
		return "API returned 404 Not Found - player/match may not exist"
	case ErrRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("API returned 429 Too Many Requests - retry after %s", e.RetryAfter)
		}
		return "API returned 429 Too Many Requests"
	default:
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
}

// Unwrap maps the status code to an error kind.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrKeyRejected
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrUnavailable
	}
}
