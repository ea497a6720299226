// Package testutil provides mock implementations and testing utilities for the evaluator.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/github"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// MockGitHubClient implements github.API for testing.
// It's a programmable mock: configure PRs, files, issues and errors, then
// inspect the recorded calls.
type MockGitHubClient struct {
	changedFiles map[int][]types.ChangedFile
	issues       map[int]*types.Issue
	repos        map[string]*github.RepoInfo
	languages    map[string]map[string]int
	errors       map[string]error
	calls        map[string]int
	pullRequests []*types.PullRequest
	mu           sync.RWMutex
}

// NewMockGitHubClient creates a new MockGitHubClient.
func NewMockGitHubClient() *MockGitHubClient {
	return &MockGitHubClient{
		changedFiles: make(map[int][]types.ChangedFile),
		issues:       make(map[int]*types.Issue),
		repos:        make(map[string]*github.RepoInfo),
		languages:    make(map[string]map[string]int),
		errors:       make(map[string]error),
		calls:        make(map[string]int),
	}
}

// AddPullRequest appends a merged pull request with its changed files.
func (m *MockGitHubClient) AddPullRequest(pr *types.PullRequest, files []types.ChangedFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullRequests = append(m.pullRequests, pr)
	m.changedFiles[pr.Number] = files
}

// SetIssue configures the issue returned for its number.
func (m *MockGitHubClient) SetIssue(issue *types.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issue.Number] = issue
}

// SetRepository configures repository metadata and language bytes for owner/repo.
func (m *MockGitHubClient) SetRepository(fullName string, info *github.RepoInfo, langs map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[fullName] = info
	m.languages[fullName] = langs
}

// SetError configures an error for a call key such as "Issue:42", "ChangedFiles:7",
// "MergedPullRequests", "Repository:o/r" or "Languages:o/r".
func (m *MockGitHubClient) SetError(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[key] = err
}

// Calls returns how many times the call key was invoked.
func (m *MockGitHubClient) Calls(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[key]
}

func (m *MockGitHubClient) record(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[key]++
	return m.errors[key]
}

// MergedPullRequests returns the configured PRs merged after cutoff.
func (m *MockGitHubClient) MergedPullRequests(_ context.Context, _, _ string, cutoff time.Time) ([]*types.PullRequest, error) {
	if err := m.record("MergedPullRequests"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.PullRequest
	for _, pr := range m.pullRequests {
		if pr.Merged() && pr.MergedAt.After(cutoff) {
			out = append(out, pr)
		}
	}
	return out, nil
}

// ChangedFiles returns the configured files for a PR.
func (m *MockGitHubClient) ChangedFiles(_ context.Context, _, _ string, number int) ([]types.ChangedFile, error) {
	if err := m.record(fmt.Sprintf("ChangedFiles:%d", number)); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.changedFiles[number], nil
}

// Issue returns the configured issue or github.ErrNotFound.
func (m *MockGitHubClient) Issue(_ context.Context, _, _ string, number int) (*types.Issue, error) {
	if err := m.record(fmt.Sprintf("Issue:%d", number)); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	issue, ok := m.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", number, github.ErrNotFound)
	}
	return issue, nil
}

// Repository returns the configured repository metadata.
func (m *MockGitHubClient) Repository(_ context.Context, owner, repo string) (*github.RepoInfo, error) {
	key := owner + "/" + repo
	if err := m.record("Repository:" + key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.repos[key]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", key, github.ErrNotFound)
	}
	return info, nil
}

// Languages returns the configured language bytes.
func (m *MockGitHubClient) Languages(_ context.Context, owner, repo string) (map[string]int, error) {
	key := owner + "/" + repo
	if err := m.record("Languages:" + key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.languages[key], nil
}
