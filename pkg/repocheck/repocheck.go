// Package repocheck decides whether a repository is worth scanning for relevant pull requests.
package repocheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/github"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// LOC status values recorded when counting fails.
const (
	LOCStatusError = "ERROR"
	LOCStatusZero  = "ERROR 0"
)

// RepoSource provides repository metadata.
type RepoSource interface {
	Repository(ctx context.Context, owner, repo string) (*github.RepoInfo, error)
	Languages(ctx context.Context, owner, repo string) (map[string]int, error)
}

// LineCounter counts lines of code for a repository.
type LineCounter interface {
	Count(ctx context.Context, fullName, defaultBranch string) (int, error)
}

// AddedChecker reports whether a repository was already accepted.
type AddedChecker interface {
	IsAdded(ctx context.Context, fullName string) (bool, error)
}

// Options are the acceptance thresholds.
type Options struct {
	LOCThresholds      map[int]int // minimum stars -> required lines of code
	MinStars           int
	MinLanguagePercent float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinStars:           400,
		MinLanguagePercent: 70,
		LOCThresholds: map[int]int{
			400:  150000,
			450:  120000,
			500:  100000,
			800:  75000,
			1500: 60000,
		},
	}
}

// RequiredLOC returns the lines of code a repository with the given stars must have.
// Thresholds are checked from the highest star key down; below every key the
// strictest requirement applies.
func RequiredLOC(stars int, thresholds map[int]int) int {
	keys := make([]int, 0, len(thresholds))
	strictest := 0
	for k, v := range thresholds {
		keys = append(keys, k)
		strictest = max(strictest, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	for _, k := range keys {
		if stars >= k {
			return thresholds[k]
		}
	}
	return strictest
}

// Checker evaluates repositories for one target language.
type Checker struct {
	repos    RepoSource
	lines    LineCounter
	added    AddedChecker
	now      func() time.Time
	language string
	opts     Options
}

// New creates a Checker for the GitHub language name (e.g. "Java"). added may be nil.
func New(repos RepoSource, lines LineCounter, added AddedChecker, language string, opts Options) *Checker {
	return &Checker{
		repos:    repos,
		lines:    lines,
		added:    added,
		language: language,
		opts:     opts,
		now:      time.Now,
	}
}

// Evaluate runs the logical checks for fullName ("owner/repo").
// The returned error is non-nil only when the repository could not be inspected.
func (c *Checker) Evaluate(ctx context.Context, fullName string) (types.RepoEvaluation, error) {
	ev := types.RepoEvaluation{FullName: fullName, Language: c.language, EvaluatedAt: c.now()}

	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		ev.Reason = "Invalid repository name"
		return ev, fmt.Errorf("invalid repository %q: expected owner/repo", fullName)
	}

	if c.added != nil {
		exists, err := c.added.IsAdded(ctx, fullName)
		if err != nil {
			slog.Warn("Could not check store for repository", "component", "repocheck", "repo", fullName, "error", err)
		} else if exists {
			ev.AlreadyExists = true
			ev.Reason = "Exists in store"
			return ev, nil
		}
	}

	info, err := c.repos.Repository(ctx, owner, repo)
	if err != nil {
		ev.Reason = "Could not fetch repo details"
		if errors.Is(err, github.ErrNotFound) {
			ev.Reason = "Repository not found"
		}
		return ev, fmt.Errorf("evaluating %s: %w", fullName, err)
	}
	langs, err := c.repos.Languages(ctx, owner, repo)
	if err != nil {
		ev.Reason = "Could not fetch repo details"
		return ev, fmt.Errorf("evaluating %s: %w", fullName, err)
	}

	ev.PrimaryLanguage = info.Language
	ev.Stars = info.Stars

	total := 0
	for _, n := range langs {
		total += n
	}
	if total == 0 {
		ev.Reason = "Repo appears to be empty"
		return ev, nil
	}
	for name, n := range langs {
		if strings.EqualFold(name, c.language) {
			ev.LanguagePercent = math.Round(float64(n)/float64(total)*10000) / 100
			break
		}
	}

	var reasons []string
	langOK := ev.LanguagePercent >= c.opts.MinLanguagePercent
	starsOK := ev.Stars >= c.opts.MinStars
	if !langOK {
		reasons = append(reasons, fmt.Sprintf("%s < %g%%", c.language, c.opts.MinLanguagePercent))
	}
	if !starsOK {
		reasons = append(reasons, fmt.Sprintf("Stars < %d", c.opts.MinStars))
	}

	if !langOK || !starsOK {
		reasons = append(reasons, "LOC check skipped")
		ev.Reason = strings.Join(reasons, ", ")
		return ev, nil
	}

	loc, err := c.lines.Count(ctx, fullName, info.DefaultBranch)
	if err != nil {
		if ctx.Err() != nil {
			return ev, fmt.Errorf("evaluating %s: %w", fullName, ctx.Err())
		}
		ev.LOCStatus = LOCStatusError
		if errors.Is(err, ErrZeroLines) {
			ev.LOCStatus = LOCStatusZero
		}
		ev.ManualReview = true
		ev.Reason = "LOC count failed, manual review needed"
		slog.Warn("LOC count failed", "component", "repocheck", "repo", fullName, "error", err)
		return ev, nil
	}
	ev.LOC = loc

	required := RequiredLOC(ev.Stars, c.opts.LOCThresholds)
	if loc < required {
		ev.Reason = fmt.Sprintf("LOC < %d", required)
		return ev, nil
	}

	ev.ShouldAdd = true
	ev.Reason = "All checks passed."
	slog.Info("Repository accepted", "component", "repocheck", "repo", fullName,
		"language_percent", ev.LanguagePercent, "stars", ev.Stars, "loc", loc)
	return ev, nil
}
