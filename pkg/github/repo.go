package github

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v68/github"
)

// RepoInfo holds the repository attributes used by the logical checks.
type RepoInfo struct {
	FullName      string
	DefaultBranch string
	Language      string
	Stars         int
	Archived      bool
}

// Repository fetches repository metadata.
func (c *Client) Repository(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)
	resp, err := c.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}

	var raw gh.Repository
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decoding repository %s/%s: %w", owner, repo, err)
	}
	return &RepoInfo{
		FullName:      raw.GetFullName(),
		DefaultBranch: raw.GetDefaultBranch(),
		Language:      raw.GetLanguage(),
		Stars:         raw.GetStargazersCount(),
		Archived:      raw.GetArchived(),
	}, nil
}

// Languages returns the byte count per language reported for the repository.
func (c *Client) Languages(ctx context.Context, owner, repo string) (map[string]int, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/languages", c.baseURL, owner, repo)
	resp, err := c.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching languages for %s/%s: %w", owner, repo, err)
	}

	langs := make(map[string]int)
	if err := json.Unmarshal(resp.Body, &langs); err != nil {
		return nil, fmt.Errorf("decoding languages for %s/%s: %w", owner, repo, err)
	}
	return langs, nil
}
