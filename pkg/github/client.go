// Package github provides a rate-limit aware GitHub REST client.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/cache"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"

	"github.com/codeGROOVE-dev/retry"
)

// Client defaults.
const (
	DefaultBaseURL       = "https://api.github.com"
	defaultHTTPTimeout   = 30 * time.Second
	defaultResetBuffer   = 5 * time.Second
	defaultMaxPasses     = 2
	defaultResetFallback = 60 * time.Second
	maxResponseBytes     = 32 << 20
)

// Config holds configuration for creating a new GitHub client.
type Config struct {
	HTTPClient HTTPDoer        // Optional; defaults to an *http.Client with HTTPTimeout
	Pool       *CredentialPool // Required
	Now        func() time.Time
	BaseURL    string
	CacheDir   string // Directory for disk cache (empty = memory-only)
	// ResetBuffer is added to the rate-limit reset time before retrying.
	ResetBuffer time.Duration
	// MaxRateLimitWait caps a single rate-limit sleep; longer waits fail with ErrRateLimited.
	MaxRateLimitWait time.Duration
	HTTPTimeout      time.Duration
	PageDelay        time.Duration
	// MaxRateLimitPasses bounds how many times the whole pool may be exhausted per request.
	MaxRateLimitPasses int
}

// Client handles all GitHub API interactions.
type Client struct {
	httpClient  HTTPDoer
	pool        *CredentialPool
	files       cache.Store[[]types.ChangedFile]
	issues      cache.Store[*types.Issue]
	now         func() time.Time
	baseURL     string
	resetBuffer time.Duration
	maxWait     time.Duration
	pageDelay   time.Duration
	maxPasses   int
}

// Response is a fully read API response.
type Response struct {
	Header     http.Header
	Body       []byte
	StatusCode int
}

// New creates a new GitHub API client.
func New(cfg Config) (*Client, error) {
	if cfg.Pool == nil {
		return nil, errors.New("credential pool is required")
	}
	c := &Client{
		httpClient:  cfg.HTTPClient,
		pool:        cfg.Pool,
		now:         cfg.Now,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		resetBuffer: cfg.ResetBuffer,
		maxWait:     cfg.MaxRateLimitWait,
		pageDelay:   cfg.PageDelay,
		maxPasses:   cfg.MaxRateLimitPasses,
	}
	if c.httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.resetBuffer <= 0 {
		c.resetBuffer = defaultResetBuffer
	}
	if c.maxPasses <= 0 {
		c.maxPasses = defaultMaxPasses
	}

	files, err := cache.NewDiskCache[[]types.ChangedFile](cache.TTLMergedPR, cfg.CacheDir, "pr-files")
	if err != nil {
		return nil, fmt.Errorf("changed files cache: %w", err)
	}
	issues, err := cache.NewDiskCache[*types.Issue](cache.TTLIssue, cfg.CacheDir, "issues")
	if err != nil {
		return nil, fmt.Errorf("issue cache: %w", err)
	}
	c.files = files
	c.issues = issues

	return c, nil
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// Get performs a GET request against apiURL with params appended to its query.
//
// A 403 carrying a rate-limit message rotates to the next credential immediately;
// once every credential has been tried in the current pass the client sleeps until
// the earliest reset plus the buffer. Other non-2xx statuses fail without retry,
// as *HTTPError (matching ErrNotFound for 404).
func (c *Client) Get(ctx context.Context, apiURL string, params url.Values) (*Response, error) {
	fullURL, err := withParams(apiURL, params)
	if err != nil {
		return nil, err
	}
	sanitized := sanitizeURLForLogging(fullURL)

	attempts := uint(c.maxPasses * c.pool.Len()) //nolint:gosec // both small positive ints
	var resp *Response
	err = retry.Do(
		func() error {
			r, err := c.fetch(ctx, fullURL)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			var rl *rateLimitError
			if errors.As(err, &rl) {
				return rl.wait
			}
			return 0
		}),
		retry.RetryIf(func(err error) bool {
			var rl *rateLimitError
			return errors.As(err, &rl)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retry attempt", "component", "retry", "url", sanitized, "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// fetch performs a single request with the pool's current credential.
func (c *Client) fetch(ctx context.Context, apiURL string) (*Response, error) {
	idx, token, err := c.pool.Next(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	slog.Debug("HTTP request", "component", "http", "method", http.MethodGet, "url", sanitizeURLForLogging(apiURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.pool.Restore(idx)
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	if isRateLimited(resp.StatusCode, body) {
		reset := resetTime(resp.Header, c.now())
		all, earliest := c.pool.MarkExhausted(idx, reset)
		if !all {
			return nil, &rateLimitError{reset: reset}
		}
		var wait time.Duration
		if d := earliest.Sub(c.now()); d > 0 {
			wait = d + c.resetBuffer
		}
		if c.maxWait > 0 && wait > c.maxWait {
			return nil, fmt.Errorf("%w: reset in %s exceeds max wait %s", ErrRateLimited, wait.Round(time.Second), c.maxWait)
		}
		slog.Warn("All GitHub credentials rate limited, waiting for reset", "component", "http",
			"wait", wait.Round(time.Millisecond), "reset", earliest.Format(time.RFC3339))
		return nil, &rateLimitError{reset: earliest, wait: wait}
	}

	return nil, &HTTPError{URL: sanitizeURLForLogging(apiURL), StatusCode: resp.StatusCode, Body: string(body)}
}

func isRateLimited(status int, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return false
	}
	return strings.Contains(strings.ToLower(string(body)), "rate limit")
}

// resetTime reads Retry-After (seconds or HTTP date, sent for secondary limits),
// then X-RateLimit-Reset (unix seconds), defaulting to a minute from now.
func resetTime(h http.Header, now time.Time) time.Time {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
		if t, err := http.ParseTime(v); err == nil {
			return t
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0)
		}
	}
	return now.Add(defaultResetFallback)
}

func withParams(apiURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return apiURL, nil
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", apiURL, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sanitizeURLForLogging strips credentials that may appear in query strings.
func sanitizeURLForLogging(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	q := u.Query()
	for _, k := range []string{"access_token", "token", "client_secret"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
