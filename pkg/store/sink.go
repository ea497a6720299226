package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// WriteProgress stores the deterministic-stage counts so an interrupted run can be told apart.
func (s *Store) WriteProgress(ctx context.Context, owner, repo string, totalPRs, relevant int) error {
	fullName := owner + "/" + repo
	_, err := s.db.ExecContext(ctx, `
INSERT INTO repositories (full_name, total_prs, relevant_prs, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(full_name) DO UPDATE SET
    total_prs = excluded.total_prs,
    relevant_prs = excluded.relevant_prs,
    updated_at = excluded.updated_at`, fullName, totalPRs, relevant, now())
	if err != nil {
		return fmt.Errorf("writing progress for %s: %w", fullName, err)
	}
	slog.Debug("Stored scan progress", "component", "store", "repo", fullName, "total", totalPRs, "relevant", relevant)
	return nil
}

// WriteRecords replaces the stored PR report rows for the repository.
func (s *Store) WriteRecords(ctx context.Context, owner, repo string, records []types.ReportRecord) (err error) {
	fullName := owner + "/" + repo
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM pr_reports WHERE full_name = ?`, fullName); err != nil {
		return fmt.Errorf("clearing reports for %s: %w", fullName, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO pr_reports (full_name, pr_number, pr_url, issue_number, issue_url, changed_lines, verdict, comment, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing report insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err = stmt.ExecContext(ctx, fullName, r.PRNumber, r.PRURL, r.IssueNumber, r.IssueURL,
			r.ChangedLines, string(r.Verdict), r.Comment, i); err != nil {
			return fmt.Errorf("inserting report for %s#%d: %w", fullName, r.PRNumber, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing reports for %s: %w", fullName, err)
	}
	return nil
}

// WriteOutcome stores the relevance verdict for the repository and logs the run.
func (s *Store) WriteOutcome(ctx context.Context, res *types.ScanResult) (err error) {
	outcome := CheckNo
	if res.Passed {
		outcome = CheckYes
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO repositories (full_name, total_prs, relevant_prs, agentic_check, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(full_name) DO UPDATE SET
    total_prs = excluded.total_prs,
    relevant_prs = excluded.relevant_prs,
    agentic_check = excluded.agentic_check,
    updated_at = excluded.updated_at`,
		res.FullName(), res.TotalPRs, len(res.Relevant), outcome, now()); err != nil {
		return fmt.Errorf("writing outcome for %s: %w", res.FullName(), err)
	}

	passed := 0
	if res.Passed {
		passed = 1
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO scan_runs (id, full_name, started_at, finished_at, total_prs, relevant_prs, good_count, target_good, passed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.FullName(), res.StartedAt.UTC().Format(time.RFC3339), res.FinishedAt.UTC().Format(time.RFC3339),
		res.TotalPRs, len(res.Relevant), res.GoodCount, res.TargetGood, passed); err != nil {
		return fmt.Errorf("recording run %s: %w", res.RunID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing outcome for %s: %w", res.FullName(), err)
	}
	slog.Info("Stored scan outcome", "component", "store", "repo", res.FullName(), "outcome", outcome, "run_id", res.RunID)
	return nil
}

// Reports returns the stored report rows for fullName in scan order.
func (s *Store) Reports(ctx context.Context, fullName string) ([]types.ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pr_number, pr_url, issue_number, issue_url, changed_lines, verdict, comment
FROM pr_reports WHERE full_name = ? ORDER BY position`, fullName)
	if err != nil {
		return nil, fmt.Errorf("listing reports for %s: %w", fullName, err)
	}
	defer rows.Close()

	var out []types.ReportRecord
	for rows.Next() {
		var r types.ReportRecord
		var verdict string
		if err := rows.Scan(&r.PRNumber, &r.PRURL, &r.IssueNumber, &r.IssueURL, &r.ChangedLines, &verdict, &r.Comment); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		r.Verdict = types.Verdict(verdict)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs returns the recorded scan runs for fullName, newest first.
func (s *Store) Runs(ctx context.Context, fullName string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, full_name, started_at, finished_at, total_prs, relevant_prs, good_count, target_good, passed
FROM scan_runs WHERE full_name = ? ORDER BY started_at DESC`, fullName)
	if err != nil {
		return nil, fmt.Errorf("listing runs for %s: %w", fullName, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.FullName, &started, &finished, &r.TotalPRs, &r.RelevantPRs,
			&r.GoodCount, &r.TargetGood, &r.Passed); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
