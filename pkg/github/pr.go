package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"

	gh "github.com/google/go-github/v68/github"
)

// PR-related constants.
const (
	perPageLimit = 100 // GitHub API per_page limit
	// maxFilePages covers GitHub's 3000 file cap on the PR files endpoint.
	maxFilePages = 30
)

// MergedPullRequests pages through closed pull requests in descending update order
// and returns those merged strictly after cutoff.
//
// Paging stops at the first page with no qualifying PR or a short page. On error the
// PRs collected so far are returned alongside it.
func (c *Client) MergedPullRequests(ctx context.Context, owner, repo string, cutoff time.Time) ([]*types.PullRequest, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, owner, repo)

	var out []*types.PullRequest
	for page := 1; ; page++ {
		slog.Info("Requesting page of closed PRs", "component", "api", "owner", owner, "repo", repo, "page", page)
		params := url.Values{
			"state":     {"closed"},
			"sort":      {"updated"},
			"direction": {"desc"},
			"per_page":  {strconv.Itoa(perPageLimit)},
			"page":      {strconv.Itoa(page)},
		}
		resp, err := c.Get(ctx, apiURL, params)
		if err != nil {
			return out, fmt.Errorf("listing pull requests page %d: %w", page, err)
		}

		var items []*gh.PullRequest
		if err := json.Unmarshal(resp.Body, &items); err != nil {
			return out, fmt.Errorf("decoding pull requests page %d: %w", page, err)
		}

		qualifying := 0
		for _, item := range items {
			pr := convertPullRequest(item)
			if !pr.Merged() || !pr.MergedAt.After(cutoff) {
				continue
			}
			qualifying++
			out = append(out, pr)
		}
		slog.Debug("Processed PR page", "component", "api", "page", page, "items", len(items), "qualifying", qualifying)

		if qualifying == 0 || len(items) < perPageLimit {
			break
		}
		if err := sleep(ctx, c.pageDelay); err != nil {
			return out, err
		}
	}

	slog.Info("Found merged PRs", "component", "api", "owner", owner, "repo", repo, "count", len(out), "merged_after", cutoff.Format(time.RFC3339))
	return out, nil
}

func convertPullRequest(p *gh.PullRequest) *types.PullRequest {
	pr := &types.PullRequest{
		Number: p.GetNumber(),
		Title:  p.GetTitle(),
		Body:   p.GetBody(),
		URL:    p.GetHTMLURL(),
	}
	if p.MergedAt != nil {
		pr.MergedAt = p.MergedAt.Time
	}
	if p.UpdatedAt != nil {
		pr.UpdatedAt = p.UpdatedAt.Time
	}
	return pr
}

// ChangedFiles fetches the list of changed files in a PR.
func (c *Client) ChangedFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error) {
	cacheKey := fmt.Sprintf("pr-files:%s/%s:%d", owner, repo, number)
	if files, ok := c.files.Get(cacheKey); ok {
		slog.Debug("Changed files cache hit", "component", "api", "pr", number)
		return files, nil
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files", c.baseURL, owner, repo, number)
	var files []types.ChangedFile
	for page := 1; page <= maxFilePages; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(perPageLimit)},
			"page":     {strconv.Itoa(page)},
		}
		resp, err := c.Get(ctx, apiURL, params)
		if err != nil {
			return nil, fmt.Errorf("listing files for PR %d: %w", number, err)
		}

		var items []*gh.CommitFile
		if err := json.Unmarshal(resp.Body, &items); err != nil {
			return nil, fmt.Errorf("decoding files for PR %d: %w", number, err)
		}
		for _, f := range items {
			files = append(files, types.ChangedFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if len(items) < perPageLimit {
			break
		}
	}

	c.files.Set(cacheKey, files)
	return files, nil
}
