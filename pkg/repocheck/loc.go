package repocheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/cache"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/github"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultLOCURL is the codetabs lines-of-code endpoint.
const DefaultLOCURL = "https://api.codetabs.com/v1/loc"

// ErrZeroLines is returned when every attempt answered but reported no code.
var ErrZeroLines = errors.New("line counter reported zero lines")

// codetabs allows roughly one request every five seconds per client.
const throttleDelay = 5 * time.Second

// LOCCounter counts lines of code through the codetabs API.
type LOCCounter struct {
	client  github.HTTPDoer
	cache   cache.Store[int]
	baseURL string
	delay   time.Duration
}

// NewLOCCounter creates a counter. An empty baseURL selects DefaultLOCURL.
func NewLOCCounter(client github.HTTPDoer, store cache.Store[int], baseURL string) *LOCCounter {
	if baseURL == "" {
		baseURL = DefaultLOCURL
	}
	return &LOCCounter{client: client, cache: store, baseURL: baseURL, delay: throttleDelay}
}

type locEntry struct {
	Language    string `json:"language"`
	LinesOfCode int    `json:"linesOfCode"`
}

// Count returns the total lines of code for fullName, trying the repository
// without a branch, then "main", then defaultBranch.
func (l *LOCCounter) Count(ctx context.Context, fullName, defaultBranch string) (int, error) {
	key := "loc:" + strings.ToLower(fullName)
	if n, ok := l.cache.Get(key); ok {
		slog.Debug("LOC cache hit", "component", "repocheck", "repo", fullName, "loc", n)
		return n, nil
	}

	branches := []string{"", "main"}
	if defaultBranch != "" && defaultBranch != "main" {
		branches = append(branches, defaultBranch)
	}

	var errs []error
	zero := 0
	for _, branch := range branches {
		n, err := l.countBranch(ctx, fullName, branch)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			slog.Debug("LOC attempt failed", "component", "repocheck", "repo", fullName, "branch", branch, "error", err)
			errs = append(errs, err)
			continue
		}
		if n == 0 {
			zero++
			continue
		}
		l.cache.SetWithTTL(key, n, cache.TTLLinesOfCode)
		return n, nil
	}
	if zero == len(branches) {
		return 0, ErrZeroLines
	}
	return 0, fmt.Errorf("counting lines for %s: %w", fullName, errors.Join(errs...))
}

func (l *LOCCounter) countBranch(ctx context.Context, fullName, branch string) (int, error) {
	params := url.Values{"github": {fullName}}
	if branch != "" {
		params.Set("branch", branch)
	}
	reqURL := l.baseURL + "?" + params.Encode()

	var total int
	err := retry.Do(
		func() error {
			n, err := l.fetch(ctx, reqURL)
			total = n
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration { return l.delay }),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errThrottled) }),
		retry.LastErrorOnly(true),
	)
	return total, err
}

var errThrottled = errors.New("line counter throttled")

func (l *LOCCounter) fetch(ctx context.Context, reqURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting %s: %w", reqURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "component", "repocheck", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, errThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &github.HTTPError{StatusCode: resp.StatusCode, URL: reqURL, Body: string(body)}
	}

	var entries []locEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	total := 0
	for _, e := range entries {
		if strings.EqualFold(strings.TrimSpace(e.Language), "total") {
			total += e.LinesOfCode
		}
	}
	return total, nil
}
