// Package pipeline runs the per-repository relevance scan.
//
// Stage one walks merged pull requests through the deterministic gates (issue
// link, issue fetch, English check, changed files, file classification). Stage
// two runs the issue quality check over the survivors until enough Good
// verdicts are found.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/classify"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/issuelink"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/quality"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/report"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source provides the GitHub data a scan needs.
type Source interface {
	MergedPullRequests(ctx context.Context, owner, repo string, cutoff time.Time) ([]*types.PullRequest, error)
	ChangedFiles(ctx context.Context, owner, repo string, number int) ([]types.ChangedFile, error)
	Issue(ctx context.Context, owner, repo string, number int) (*types.Issue, error)
}

// Checker rates a linked issue. Implementations must not fail; see quality.Classifier.
type Checker interface {
	Classify(ctx context.Context, body string, p *profile.Profile) types.QualityVerdict
}

// Config controls a scan.
type Config struct {
	MergedAfter time.Time
	Profile     *profile.Profile
	Registry    *profile.Registry
	Classify    classify.Options
	// EnglishThreshold is the minimum ASCII ratio of an issue body when RequireEnglish is set.
	EnglishThreshold float64
	// QualityFraction limits the quality stage to a prefix of the relevant PRs; 0 or 1 means all.
	QualityFraction float64
	// LLMDelay separates sequential quality checks.
	LLMDelay   time.Duration
	TargetGood int
	// Workers > 1 runs the quality stage on a bounded pool.
	Workers        int
	RequireEnglish bool
}

// Pipeline scans repositories for relevant pull requests.
type Pipeline struct {
	source  Source
	checker Checker
	now     func() time.Time
	cfg     Config
}

// New creates a pipeline.
func New(source Source, checker Checker, cfg Config) (*Pipeline, error) {
	if source == nil || checker == nil {
		return nil, errors.New("source and checker are required")
	}
	if cfg.Profile == nil || cfg.Registry == nil {
		return nil, errors.New("language profile and registry are required")
	}
	if cfg.QualityFraction < 0 || cfg.QualityFraction > 1 {
		return nil, fmt.Errorf("quality fraction %v out of range [0,1]", cfg.QualityFraction)
	}
	if cfg.RequireEnglish && cfg.EnglishThreshold <= 0 {
		cfg.EnglishThreshold = 0.9
	}
	return &Pipeline{source: source, checker: checker, cfg: cfg, now: time.Now}, nil
}

// FindRelevant returns the PRs that pass every deterministic gate, in source
// order, and the number of merged PRs examined. Per-PR failures are logged and
// skipped; a listing failure keeps whatever PRs were listed before it.
func (p *Pipeline) FindRelevant(ctx context.Context, owner, repo string) ([]types.RelevantPR, int, error) {
	log := slog.With("component", "pipeline", "repo", owner+"/"+repo)

	prs, err := p.source.MergedPullRequests(ctx, owner, repo, p.cfg.MergedAfter)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, len(prs), ctxErr
		}
		log.Warn("Listing merged PRs failed, continuing with partial list", "error", err, "listed", len(prs))
	}

	var relevant []types.RelevantPR
	for _, pr := range prs {
		if err := ctx.Err(); err != nil {
			return relevant, len(prs), err
		}
		r, reason := p.evaluate(ctx, owner, repo, pr)
		if r == nil {
			log.Debug("Skipping PR", "pr", pr.Number, "reason", reason)
			continue
		}
		log.Debug("PR is logically relevant", "pr", pr.Number, "issue", r.IssueNumber)
		relevant = append(relevant, *r)
	}

	log.Info("Found logically relevant PRs", "relevant", len(relevant), "total", len(prs))
	return relevant, len(prs), nil
}

// evaluate applies the gates to one PR, returning nil and the reason on a skip.
func (p *Pipeline) evaluate(ctx context.Context, owner, repo string, pr *types.PullRequest) (*types.RelevantPR, string) {
	number, ok := issuelink.ExtractIssueNumber(pr.Body)
	if !ok {
		return nil, "no unique issue reference"
	}

	issue, err := p.source.Issue(ctx, owner, repo, number)
	if err != nil {
		slog.Warn("Fetching linked issue failed", "component", "pipeline", "pr", pr.Number, "issue", number, "error", err)
		return nil, fmt.Sprintf("issue #%d unavailable", number)
	}
	if issue.IsPullRequest {
		return nil, fmt.Sprintf("#%d is a pull request, not an issue", number)
	}
	if p.cfg.RequireEnglish && !quality.LooksEnglish(issue.Body, p.cfg.EnglishThreshold) {
		return nil, fmt.Sprintf("issue #%d is not in English", number)
	}

	files, err := p.source.ChangedFiles(ctx, owner, repo, pr.Number)
	if err != nil {
		slog.Warn("Fetching changed files failed", "component", "pipeline", "pr", pr.Number, "error", err)
		return nil, "changed files unavailable"
	}
	if len(files) == 0 {
		return nil, classify.ReasonNoFiles
	}

	res := classify.Classify(files, p.cfg.Profile, p.cfg.Registry, p.cfg.Classify)
	if !res.Passed {
		return nil, res.Reason
	}

	withFiles := *pr
	withFiles.Files = files
	return &types.RelevantPR{
		PR:             withFiles,
		Issue:          issue,
		IssueNumber:    number,
		Classification: res.ChangeClassification,
	}, ""
}

// CheckQuality rates the linked issues of relevant PRs until TargetGood Good
// verdicts are found. It returns the verdicts keyed by PR number and the Good count.
func (p *Pipeline) CheckQuality(ctx context.Context, relevant []types.RelevantPR) (map[int]types.QualityVerdict, int) {
	candidates := relevant
	if f := p.cfg.QualityFraction; f > 0 && f < 1 {
		candidates = relevant[:int(math.Ceil(float64(len(relevant))*f))]
	}

	if p.cfg.Workers > 1 {
		return p.checkParallel(ctx, candidates)
	}
	return p.checkSequential(ctx, candidates)
}

func (p *Pipeline) checkSequential(ctx context.Context, candidates []types.RelevantPR) (map[int]types.QualityVerdict, int) {
	verdicts := make(map[int]types.QualityVerdict, len(candidates))
	good := 0
	for i, r := range candidates {
		if i > 0 && p.cfg.LLMDelay > 0 {
			t := time.NewTimer(p.cfg.LLMDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return verdicts, good
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			break
		}

		v := p.checker.Classify(ctx, r.Issue.Body, p.cfg.Profile)
		verdicts[r.PR.Number] = v
		slog.Info("Quality check", "component", "pipeline", "pr", r.PR.Number, "issue", r.IssueNumber, "verdict", v.Verdict, "comment", v.Comment)

		if v.Verdict == types.VerdictGood {
			good++
			if p.reached(good) {
				slog.Info("Target Good PR count reached", "component", "pipeline", "target", p.cfg.TargetGood)
				break
			}
		}
	}
	return verdicts, good
}

// checkParallel stops submitting work once the target is reached; checks
// already running finish and are kept.
func (p *Pipeline) checkParallel(ctx context.Context, candidates []types.RelevantPR) (map[int]types.QualityVerdict, int) {
	verdicts := make(map[int]types.QualityVerdict, len(candidates))
	var mu sync.Mutex
	var good atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, r := range candidates {
		if p.reached(int(good.Load())) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// The slot may free up only after other workers met the target.
			if p.reached(int(good.Load())) || ctx.Err() != nil {
				return nil
			}
			v := p.checker.Classify(ctx, r.Issue.Body, p.cfg.Profile)
			mu.Lock()
			verdicts[r.PR.Number] = v
			mu.Unlock()
			if v.Verdict == types.VerdictGood {
				good.Add(1)
			}
			slog.Info("Quality check", "component", "pipeline", "pr", r.PR.Number, "issue", r.IssueNumber, "verdict", v.Verdict)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	return verdicts, int(good.Load())
}

func (p *Pipeline) reached(good int) bool {
	return p.cfg.TargetGood > 0 && good >= p.cfg.TargetGood
}

// Scan runs both stages for one repository. When sink is non-nil it receives
// progress before the quality stage and records plus outcome after it. Sink
// failures are returned alongside the completed result.
func (p *Pipeline) Scan(ctx context.Context, owner, repo string, sink report.Sink) (*types.ScanResult, error) {
	res := &types.ScanResult{
		RunID:      uuid.NewString(),
		Owner:      owner,
		Repo:       repo,
		TargetGood: p.cfg.TargetGood,
		StartedAt:  p.now(),
		Verdicts:   map[int]types.QualityVerdict{},
	}
	slog.Info("Scanning repository", "component", "pipeline", "repo", res.FullName(), "run_id", res.RunID,
		"language", p.cfg.Profile.Name, "merged_after", p.cfg.MergedAfter.Format(time.RFC3339))

	relevant, total, err := p.FindRelevant(ctx, owner, repo)
	res.Relevant = relevant
	res.TotalPRs = total
	if err != nil {
		res.FinishedAt = p.now()
		return res, err
	}

	var sinkErrs []error
	if sink != nil {
		sinkErrs = append(sinkErrs, sink.WriteProgress(ctx, owner, repo, total, len(relevant)))
	}

	if len(relevant) > 0 {
		res.Verdicts, res.GoodCount = p.CheckQuality(ctx, relevant)
	}
	res.Passed = res.GoodCount >= p.cfg.TargetGood
	res.FinishedAt = p.now()
	if err := ctx.Err(); err != nil {
		// Leave the outcome unwritten so the repository stays pending.
		return res, fmt.Errorf("scanning %s: %w", res.FullName(), err)
	}

	slog.Info("Scan finished", "component", "pipeline", "repo", res.FullName(), "relevant", len(relevant),
		"total", total, "good", res.GoodCount, "target", p.cfg.TargetGood, "passed", res.Passed,
		"duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	if sink != nil {
		sinkErrs = append(sinkErrs,
			sink.WriteRecords(ctx, owner, repo, report.Records(res)),
			sink.WriteOutcome(ctx, res))
	}
	if err := errors.Join(sinkErrs...); err != nil {
		return res, fmt.Errorf("writing report for %s: %w", res.FullName(), err)
	}
	return res, nil
}
