package repocheck

import (
	"context"
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/github"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/internal/testutil"
)

type fakeCounter struct {
	err   error
	lines int
	calls int
}

func (f *fakeCounter) Count(context.Context, string, string) (int, error) {
	f.calls++
	return f.lines, f.err
}

type fakeAdded map[string]bool

func (f fakeAdded) IsAdded(_ context.Context, fullName string) (bool, error) {
	return f[fullName], nil
}

func TestRequiredLOC(t *testing.T) {
	thresholds := DefaultOptions().LOCThresholds
	tests := []struct {
		stars int
		want  int
	}{
		{stars: 100, want: 150000},
		{stars: 400, want: 150000},
		{stars: 449, want: 150000},
		{stars: 450, want: 120000},
		{stars: 799, want: 100000},
		{stars: 800, want: 75000},
		{stars: 1500, want: 60000},
		{stars: 90000, want: 60000},
	}
	for _, tt := range tests {
		if got := RequiredLOC(tt.stars, thresholds); got != tt.want {
			t.Errorf("RequiredLOC(%d) = %d, want %d", tt.stars, got, tt.want)
		}
	}
	if got := RequiredLOC(10, nil); got != 0 {
		t.Errorf("RequiredLOC with no thresholds = %d, want 0", got)
	}
}

func newRepoMock(stars int, langs map[string]int) *testutil.MockGitHubClient {
	m := testutil.NewMockGitHubClient()
	m.SetRepository("acme/widget", &github.RepoInfo{
		FullName:      "acme/widget",
		DefaultBranch: "main",
		Language:      "Java",
		Stars:         stars,
	}, langs)
	return m
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		langs      map[string]int
		wantReason string
		stars      int
		lines      int
		wantCount  int
		wantAdd    bool
	}{
		{
			name:       "accepted",
			stars:      900,
			langs:      map[string]int{"Java": 900, "Shell": 100},
			lines:      80000,
			wantCount:  1,
			wantAdd:    true,
			wantReason: "All checks passed.",
		},
		{
			name:       "too few lines for stars",
			stars:      460,
			langs:      map[string]int{"Java": 1000},
			lines:      110000,
			wantCount:  1,
			wantReason: "LOC < 120000",
		},
		{
			name:       "language share too low",
			stars:      900,
			langs:      map[string]int{"Java": 600, "Kotlin": 400},
			wantReason: "Java < 70%, LOC check skipped",
		},
		{
			name:       "language and stars fail",
			stars:      10,
			langs:      map[string]int{"Go": 1000},
			wantReason: "Java < 70%, Stars < 400, LOC check skipped",
		},
		{
			name:       "empty repository",
			stars:      5000,
			langs:      map[string]int{},
			wantReason: "Repo appears to be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &fakeCounter{lines: tt.lines}
			c := New(newRepoMock(tt.stars, tt.langs), counter, nil, "Java", DefaultOptions())

			ev, err := c.Evaluate(context.Background(), "acme/widget")
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if ev.ShouldAdd != tt.wantAdd {
				t.Errorf("ShouldAdd = %v, want %v", ev.ShouldAdd, tt.wantAdd)
			}
			if ev.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", ev.Reason, tt.wantReason)
			}
			if counter.calls != tt.wantCount {
				t.Errorf("LOC counter called %d times, want %d", counter.calls, tt.wantCount)
			}
			if ev.Language != "Java" {
				t.Errorf("Language = %q, want Java", ev.Language)
			}
		})
	}
}

func TestEvaluateLanguagePercent(t *testing.T) {
	c := New(newRepoMock(900, map[string]int{"java": 2, "Shell": 1}), &fakeCounter{}, nil, "Java", DefaultOptions())
	ev, err := c.Evaluate(context.Background(), "acme/widget")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if ev.LanguagePercent != 66.67 {
		t.Errorf("LanguagePercent = %v, want 66.67", ev.LanguagePercent)
	}
	if ev.PrimaryLanguage != "Java" || ev.Stars != 900 {
		t.Errorf("PrimaryLanguage/Stars = %q/%d, want Java/900", ev.PrimaryLanguage, ev.Stars)
	}
}

func TestEvaluateLOCFailureNeedsManualReview(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus string
	}{
		{err: errors.New("timeout"), wantStatus: LOCStatusError},
		{err: ErrZeroLines, wantStatus: LOCStatusZero},
	}
	for _, tt := range tests {
		c := New(newRepoMock(900, map[string]int{"Java": 1}), &fakeCounter{err: tt.err}, nil, "Java", DefaultOptions())
		ev, err := c.Evaluate(context.Background(), "acme/widget")
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !ev.ManualReview || ev.ShouldAdd {
			t.Errorf("ManualReview/ShouldAdd = %v/%v, want true/false", ev.ManualReview, ev.ShouldAdd)
		}
		if ev.LOCStatus != tt.wantStatus {
			t.Errorf("LOCStatus = %q, want %q", ev.LOCStatus, tt.wantStatus)
		}
	}
}

func TestEvaluateAlreadyAdded(t *testing.T) {
	mock := newRepoMock(900, map[string]int{"Java": 1})
	c := New(mock, &fakeCounter{}, fakeAdded{"acme/widget": true}, "Java", DefaultOptions())

	ev, err := c.Evaluate(context.Background(), "acme/widget")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !ev.AlreadyExists || ev.Reason != "Exists in store" {
		t.Errorf("got AlreadyExists=%v Reason=%q", ev.AlreadyExists, ev.Reason)
	}
	if n := mock.Calls("Repository:acme/widget"); n != 0 {
		t.Errorf("Repository called %d times, want 0", n)
	}
}

func TestEvaluateErrors(t *testing.T) {
	c := New(testutil.NewMockGitHubClient(), &fakeCounter{}, nil, "Java", DefaultOptions())

	ev, err := c.Evaluate(context.Background(), "acme/missing")
	if !errors.Is(err, github.ErrNotFound) {
		t.Errorf("Evaluate() error = %v, want ErrNotFound", err)
	}
	if ev.Reason != "Repository not found" {
		t.Errorf("Reason = %q", ev.Reason)
	}

	for _, name := range []string{"noslash", "/repo", "owner/", "a/b/c"} {
		if _, err := c.Evaluate(context.Background(), name); err == nil {
			t.Errorf("Evaluate(%q) error = nil, want error", name)
		}
	}

	mock := newRepoMock(900, map[string]int{"Java": 1})
	mock.SetError("Languages:acme/widget", errors.New("boom"))
	ev, err = New(mock, &fakeCounter{}, nil, "Java", DefaultOptions()).Evaluate(context.Background(), "acme/widget")
	if err == nil || ev.Reason != "Could not fetch repo details" {
		t.Errorf("Evaluate() = %q, %v", ev.Reason, err)
	}
}
