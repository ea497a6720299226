package github

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the API reports 404 for a resource.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when every credential stayed exhausted after the allowed passes.
	ErrRateLimited = errors.New("rate limited")
)

// HTTPError describes a non-success API response.
type HTTPError struct {
	URL        string
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, truncate(e.Body, 200))
}

// Unwrap lets errors.Is match ErrNotFound for 404 responses.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return nil
}

// rateLimitError signals the retry loop to try again after wait.
type rateLimitError struct {
	reset time.Time
	wait  time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%v (reset at %s, waiting %s)", ErrRateLimited, e.reset.Format(time.RFC3339), e.wait)
}

func (*rateLimitError) Unwrap() error { return ErrRateLimited }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
