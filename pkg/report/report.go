// Package report turns scan results into rows and persists them.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// Sink receives scan output for one repository at a time.
type Sink interface {
	// WriteProgress records the deterministic-stage counts before the quality check runs.
	WriteProgress(ctx context.Context, owner, repo string, totalPRs, relevant int) error
	// WriteRecords records one row per logically relevant PR, in scan order.
	WriteRecords(ctx context.Context, owner, repo string, records []types.ReportRecord) error
	// WriteOutcome records the final result of the scan.
	WriteOutcome(ctx context.Context, result *types.ScanResult) error
}

// Records builds report rows for every relevant PR in result. PRs the quality
// stage never reached are marked VerdictNotChecked.
func Records(result *types.ScanResult) []types.ReportRecord {
	out := make([]types.ReportRecord, 0, len(result.Relevant))
	for _, r := range result.Relevant {
		rec := types.ReportRecord{
			PRNumber:     r.PR.Number,
			PRURL:        r.PR.URL,
			IssueNumber:  r.IssueNumber,
			ChangedLines: changedLines(r.PR.Files),
			Verdict:      types.VerdictNotChecked,
		}
		if rec.PRURL == "" {
			rec.PRURL = fmt.Sprintf("https://github.com/%s/%s/pull/%d", result.Owner, result.Repo, r.PR.Number)
		}
		if r.Issue != nil && r.Issue.URL != "" {
			rec.IssueURL = r.Issue.URL
		} else {
			rec.IssueURL = fmt.Sprintf("https://github.com/%s/%s/issues/%d", result.Owner, result.Repo, r.IssueNumber)
		}
		if v, ok := result.Verdicts[r.PR.Number]; ok {
			rec.Verdict = v.Verdict
			rec.Comment = v.Comment
		}
		out = append(out, rec)
	}
	return out
}

func changedLines(files []types.ChangedFile) int {
	n := 0
	for _, f := range files {
		n += f.Additions + f.Deletions
	}
	return n
}

// MultiSink fans writes out to several sinks. Every sink is attempted; errors are joined.
type MultiSink []Sink

// WriteProgress implements Sink.
func (m MultiSink) WriteProgress(ctx context.Context, owner, repo string, totalPRs, relevant int) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteProgress(ctx, owner, repo, totalPRs, relevant))
	}
	return errors.Join(errs...)
}

// WriteRecords implements Sink.
func (m MultiSink) WriteRecords(ctx context.Context, owner, repo string, records []types.ReportRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteRecords(ctx, owner, repo, records))
	}
	return errors.Join(errs...)
}

// WriteOutcome implements Sink.
func (m MultiSink) WriteOutcome(ctx context.Context, result *types.ScanResult) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.WriteOutcome(ctx, result))
	}
	return errors.Join(errs...)
}
