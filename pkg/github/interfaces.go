package github

import (
	"context"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// HTTPDoer provides an interface for making HTTP requests.
// This allows us to mock HTTP calls in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// API defines the GitHub operations the evaluator depends on.
type API interface {
	MergedPullRequests(ctx context.Context, owner, repo string, cutoff time.Time) ([]*types.PullRequest, error)
	ChangedFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error)
	Issue(ctx context.Context, owner, repo string, number int) (*types.Issue, error)
	Repository(ctx context.Context, owner, repo string) (*RepoInfo, error)
	Languages(ctx context.Context, owner, repo string) (map[string]int, error)
}
