// Package types contains shared data structures used across the evaluator.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// PullRequest represents a GitHub pull request as seen by the relevance scan.
type PullRequest struct {
	MergedAt  time.Time // zero when the PR was closed without merging
	UpdatedAt time.Time
	Title     string
	Body      string
	URL       string
	Files     []ChangedFile
	Number    int
}

// Merged reports whether the pull request was merged.
func (pr *PullRequest) Merged() bool {
	return !pr.MergedAt.IsZero()
}

// ChangedFile represents a file changed in a pull request.
type ChangedFile struct {
	Filename  string
	Status    string // "added", "modified", "removed", "renamed"
	Additions int
	Deletions int
}

// Issue represents a GitHub issue. Issues and pull requests share a numbering
// namespace, so IsPullRequest must be checked before treating it as an issue.
type Issue struct {
	Title         string
	Body          string
	URL           string
	Number        int
	IsPullRequest bool
}

// ChangeClassification partitions the changed files of a pull request.
// Every file lands in exactly one of Foreign, Unknown, Dependencies, Tests, Sources or Ignored.
type ChangeClassification struct {
	Tests              []string
	Sources            []string // non-test source files of the active language
	Dependencies       []string
	Foreign            []string
	Unknown            []string
	Ignored            []string // documentation, markup, images and other non-code files
	NonTestSourceLines int
}

// Matched returns every source file of the active language, tests included.
func (c *ChangeClassification) Matched() []string {
	out := make([]string, 0, len(c.Tests)+len(c.Sources))
	out = append(out, c.Tests...)
	return append(out, c.Sources...)
}

// Verdict is the outcome of the issue quality check.
type Verdict string

// Quality verdicts.
const (
	VerdictGood       Verdict = "Good PR"
	VerdictBad        Verdict = "Bad PR"
	VerdictNotChecked Verdict = "Not Checked"
)

// QualityVerdict is a verdict plus the justification given for it.
type QualityVerdict struct {
	Verdict Verdict
	Comment string
}

// RelevantPR is a pull request that passed every deterministic gate.
type RelevantPR struct {
	Issue          *Issue
	PR             PullRequest
	Classification ChangeClassification
	IssueNumber    int
}

// ScanResult is the outcome of scanning one repository.
type ScanResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Verdicts   map[int]QualityVerdict // keyed by PR number
	RunID      string
	Owner      string
	Repo       string
	Relevant   []RelevantPR
	TotalPRs   int
	GoodCount  int
	TargetGood int
	Passed     bool
}

// FullName returns owner/repo.
func (r *ScanResult) FullName() string {
	return r.Owner + "/" + r.Repo
}

// ReportRecord is a single row handed to a report sink.
type ReportRecord struct {
	PRURL        string
	IssueURL     string
	Verdict      Verdict
	Comment      string
	PRNumber     int
	IssueNumber  int
	ChangedLines int
}

// RepoEvaluation is the outcome of the repository-level logical checks.
type RepoEvaluation struct {
	EvaluatedAt     time.Time
	FullName        string
	Language        string // profile the repository was evaluated for
	Reason          string
	PrimaryLanguage string // as reported by GitHub
	LOCStatus       string // "" when LOC was counted, otherwise "ERROR" or "ERROR 0"
	LanguagePercent float64
	Stars           int
	LOC             int
	ShouldAdd       bool
	ManualReview    bool
	AlreadyExists   bool
}
