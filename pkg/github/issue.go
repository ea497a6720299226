package github

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"

	gh "github.com/google/go-github/v68/github"
)

// Issue fetches an issue by number. The result may describe a pull request,
// since both share a numbering namespace; see types.Issue.IsPullRequest.
func (c *Client) Issue(ctx context.Context, owner, repo string, number int) (*types.Issue, error) {
	cacheKey := fmt.Sprintf("issue:%s/%s:%d", owner, repo, number)
	if issue, ok := c.issues.Get(cacheKey); ok {
		return issue, nil
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, owner, repo, number)
	resp, err := c.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %d: %w", number, err)
	}

	var raw gh.Issue
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decoding issue %d: %w", number, err)
	}

	issue := &types.Issue{
		Number:        raw.GetNumber(),
		Title:         raw.GetTitle(),
		Body:          raw.GetBody(),
		URL:           raw.GetHTMLURL(),
		IsPullRequest: raw.IsPullRequest(),
	}
	c.issues.Set(cacheKey, issue)
	return issue, nil
}
