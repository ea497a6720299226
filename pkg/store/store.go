// Package store persists repository progress and PR reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"

	_ "modernc.org/sqlite" // database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
    full_name        TEXT PRIMARY KEY,
    language         TEXT NOT NULL DEFAULT '',
    primary_language TEXT NOT NULL DEFAULT '',
    logical_checks   TEXT CHECK (logical_checks IN ('Yes', 'No', 'Manual')),
    reason           TEXT NOT NULL DEFAULT '',
    stars            INTEGER NOT NULL DEFAULT 0,
    language_percent REAL NOT NULL DEFAULT 0,
    loc              INTEGER NOT NULL DEFAULT 0,
    loc_status       TEXT NOT NULL DEFAULT '',
    total_prs        INTEGER,
    relevant_prs     INTEGER,
    agentic_check    TEXT CHECK (agentic_check IN ('Yes', 'No')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pr_reports (
    full_name     TEXT NOT NULL,
    pr_number     INTEGER NOT NULL,
    pr_url        TEXT NOT NULL,
    issue_number  INTEGER NOT NULL,
    issue_url     TEXT NOT NULL,
    changed_lines INTEGER NOT NULL,
    verdict       TEXT NOT NULL,
    comment       TEXT NOT NULL DEFAULT '',
    position      INTEGER NOT NULL,
    PRIMARY KEY (full_name, pr_number)
);

CREATE TABLE IF NOT EXISTS scan_runs (
    id           TEXT PRIMARY KEY,
    full_name    TEXT NOT NULL,
    started_at   TEXT NOT NULL,
    finished_at  TEXT NOT NULL,
    total_prs    INTEGER NOT NULL,
    relevant_prs INTEGER NOT NULL,
    good_count   INTEGER NOT NULL,
    target_good  INTEGER NOT NULL,
    passed       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_repositories_pending ON repositories(logical_checks, agentic_check);
CREATE INDEX IF NOT EXISTS idx_scan_runs_repository ON scan_runs(full_name);
`

// Logical check outcomes stored per repository.
const (
	CheckYes    = "Yes"
	CheckNo     = "No"
	CheckManual = "Manual"
)

// Store is the tabular progress store. It implements report.Sink.
type Store struct {
	db *sql.DB
}

// Repository is one row of the repositories table.
type Repository struct {
	UpdatedAt       time.Time
	FullName        string
	Language        string
	PrimaryLanguage string
	LogicalChecks   string
	Reason          string
	LOCStatus       string
	AgenticCheck    string // "" until the relevance scan finished
	LanguagePercent float64
	Stars           int
	LOC             int
	TotalPRs        int
	RelevantPRs     int
}

// Run is one row of the scan_runs table.
type Run struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	ID          string
	FullName    string
	TotalPRs    int
	RelevantPRs int
	GoodCount   int
	TargetGood  int
	Passed      bool
}

// Open opens (creating if needed) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	slog.Debug("Opened store", "component", "store", "path", dbPath)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertEvaluation records the outcome of the repository-level checks.
// Scan progress columns are left untouched.
func (s *Store) UpsertEvaluation(ctx context.Context, ev types.RepoEvaluation) error {
	checks := CheckNo
	switch {
	case ev.ShouldAdd:
		checks = CheckYes
	case ev.ManualReview:
		checks = CheckManual
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO repositories (full_name, language, primary_language, logical_checks, reason, stars, language_percent, loc, loc_status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(full_name) DO UPDATE SET
    language = excluded.language,
    primary_language = excluded.primary_language,
    logical_checks = excluded.logical_checks,
    reason = excluded.reason,
    stars = excluded.stars,
    language_percent = excluded.language_percent,
    loc = excluded.loc,
    loc_status = excluded.loc_status,
    updated_at = excluded.updated_at`,
		ev.FullName, ev.Language, ev.PrimaryLanguage, checks, ev.Reason, ev.Stars, ev.LanguagePercent, ev.LOC, ev.LOCStatus, now())
	if err != nil {
		return fmt.Errorf("upserting evaluation for %s: %w", ev.FullName, err)
	}
	return nil
}

// IsAdded reports whether fullName already passed the logical checks.
func (s *Store) IsAdded(ctx context.Context, fullName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM repositories WHERE full_name = ? COLLATE NOCASE AND logical_checks = ?`,
		fullName, CheckYes).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", fullName, err)
	}
	return n > 0, nil
}

// PendingScans returns repositories that passed the logical checks but have no
// relevance outcome yet, oldest first. An empty language matches every row.
func (s *Store) PendingScans(ctx context.Context, language string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT full_name FROM repositories
WHERE logical_checks = ? AND agentic_check IS NULL AND (? = '' OR language = ? COLLATE NOCASE)
ORDER BY updated_at, full_name`, CheckYes, language, language)
	if err != nil {
		return nil, fmt.Errorf("listing pending scans: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning pending row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Repository returns the stored row for fullName.
func (s *Store) Repository(ctx context.Context, fullName string) (*Repository, error) {
	var r Repository
	var checks, agentic sql.NullString
	var total, relevant sql.NullInt64
	var updated string
	err := s.db.QueryRowContext(ctx, `
SELECT full_name, language, primary_language, logical_checks, reason, stars, language_percent, loc, loc_status,
       total_prs, relevant_prs, agentic_check, updated_at
FROM repositories WHERE full_name = ?`, fullName).Scan(
		&r.FullName, &r.Language, &r.PrimaryLanguage, &checks, &r.Reason, &r.Stars, &r.LanguagePercent, &r.LOC, &r.LOCStatus,
		&total, &relevant, &agentic, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %s not in store: %w", fullName, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fullName, err)
	}
	r.LogicalChecks = checks.String
	r.AgenticCheck = agentic.String
	r.TotalPRs = int(total.Int64)
	r.RelevantPRs = int(relevant.Int64)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
