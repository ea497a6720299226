package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

var csvHeader = []string{"pr_number", "pr_url", "issue_number", "issue_url", "changed_lines", "agent_result", "agent_comment"}

// CSVSink writes one <owner>_<repo>_relevant_prs.csv file per repository.
type CSVSink struct {
	dir string
}

// NewCSVSink creates dir if needed and returns a sink writing into it.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

// Path returns the report file for owner/repo.
func (s *CSVSink) Path(owner, repo string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_relevant_prs.csv", owner, repo))
}

// WriteProgress is a no-op; CSV files only hold final rows.
func (*CSVSink) WriteProgress(context.Context, string, string, int, int) error {
	return nil
}

// WriteRecords replaces the repository's report file with records.
func (s *CSVSink) WriteRecords(_ context.Context, owner, repo string, records []types.ReportRecord) error {
	path := s.Path(owner, repo)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, csvHeader)
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.PRNumber),
			r.PRURL,
			strconv.Itoa(r.IssueNumber),
			r.IssueURL,
			strconv.Itoa(r.ChangedLines),
			string(r.Verdict),
			r.Comment,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", path, err)
	}

	slog.Info("Wrote PR report", "component", "report", "path", path, "rows", len(records))
	return nil
}

// WriteOutcome is a no-op; the verdicts are already in the rows.
func (*CSVSink) WriteOutcome(context.Context, *types.ScanResult) error {
	return nil
}
