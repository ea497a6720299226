package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/classify"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/internal/testutil"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/quality"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

var cutoff = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

const goodJSON = `{"result":"Good PR","comment":"clear"}`

func issueBody(n int) string {
	return fmt.Sprintf("issue-%d: The exporter drops the last batch of metrics when the process receives SIGTERM. "+
		"Expected: pending batches are flushed before exit. Actual: the final batch is lost. Steps to reproduce are attached.", n)
}

func goFiles() []types.ChangedFile {
	return []types.ChangedFile{
		{Filename: "exporter/batch.go", Additions: 20, Deletions: 4},
		{Filename: "exporter/flush.go", Additions: 8},
		{Filename: "exporter/batch_test.go", Additions: 40},
		{Filename: "exporter/flush_test.go", Additions: 25},
	}
}

func addPR(src *testutil.MockGitHubClient, number int, body string, issue int, files []types.ChangedFile) {
	src.AddPullRequest(&types.PullRequest{
		Number:   number,
		Body:     body,
		MergedAt: cutoff.Add(time.Duration(number) * time.Hour),
	}, files)
	if issue > 0 {
		src.SetIssue(&types.Issue{Number: issue, Body: issueBody(issue)})
	}
}

func newPipeline(t *testing.T, src Source, checker Checker, lang string, mutate func(*Config)) *Pipeline {
	t.Helper()
	reg := profile.Default()
	p, err := reg.Lookup(lang)
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{
		MergedAfter:    cutoff,
		Profile:        p,
		Registry:       reg,
		Classify:       classify.DefaultOptions(),
		TargetGood:     2,
		RequireEnglish: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	pl, err := New(src, checker, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return pl
}

func TestScan_RelevantPRReachesQualityCheck(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 100, "fixes #42", 42, goFiles())
	model := testutil.NewMockModel(goodJSON)

	pl := newPipeline(t, src, quality.New(model), "Go", nil)
	res, err := pl.Scan(context.Background(), "o", "r", nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(res.Relevant) != 1 || res.Relevant[0].IssueNumber != 42 {
		t.Fatalf("expected PR 100 linked to #42, got %+v", res.Relevant)
	}
	if res.Relevant[0].Classification.NonTestSourceLines != 32 {
		t.Errorf("expected 32 non-test lines, got %d", res.Relevant[0].Classification.NonTestSourceLines)
	}
	if len(res.Relevant[0].PR.Files) != 4 {
		t.Errorf("expected files attached to relevant PR")
	}
	if model.PromptsContaining(issueBody(42)) != 1 {
		t.Errorf("expected the model to see issue #42's body once, got %d calls", model.Calls())
	}
	if res.Verdicts[100].Verdict != types.VerdictGood || res.GoodCount != 1 {
		t.Errorf("unexpected verdicts %+v", res.Verdicts)
	}
	if res.Passed {
		t.Error("one Good verdict must not meet a target of two")
	}
	if res.RunID == "" || res.TotalPRs != 1 {
		t.Errorf("unexpected run metadata %+v", res)
	}
}

func TestScan_AmbiguousIssueReferenceSkipsEarly(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 100, "fixes #1, resolves #2", 1, goFiles())
	src.SetIssue(&types.Issue{Number: 2, Body: issueBody(2)})
	model := testutil.NewMockModel(goodJSON)

	pl := newPipeline(t, src, quality.New(model), "Go", nil)
	res, err := pl.Scan(context.Background(), "o", "r", nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(res.Relevant) != 0 {
		t.Errorf("expected no relevant PRs, got %d", len(res.Relevant))
	}
	if src.Calls("ChangedFiles:100") != 0 || src.Calls("Issue:1") != 0 {
		t.Error("expected the PR to be skipped before any issue or file fetch")
	}
	if model.Calls() != 0 {
		t.Errorf("expected no quality checks, got %d", model.Calls())
	}
}

func TestScan_ForeignFileRejected(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	files := []types.ChangedFile{
		{Filename: "src/a.js", Additions: 30},
		{Filename: "src/b.js", Additions: 30},
		{Filename: "src/a.test.js", Additions: 30},
		{Filename: "src/b.test.js", Additions: 30},
		{Filename: "android/Bridge.java", Additions: 3},
	}
	addPR(src, 7, "Closes #5", 5, files)
	model := testutil.NewMockModel(goodJSON)

	pl := newPipeline(t, src, quality.New(model), "JavaScript", nil)
	relevant, total, err := pl.FindRelevant(context.Background(), "o", "r")
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if total != 1 || len(relevant) != 0 {
		t.Errorf("expected PR rejected for foreign file, got %d relevant of %d", len(relevant), total)
	}

	r, reason := pl.evaluate(context.Background(), "o", "r", &types.PullRequest{Number: 7, Body: "Closes #5"})
	if r != nil || !strings.HasPrefix(reason, classify.ReasonForeign) {
		t.Errorf("expected %q rejection, got %q", classify.ReasonForeign, reason)
	}
}

func TestCheckQuality_SequentialStopsAtTarget(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	for i := 1; i <= 5; i++ {
		addPR(src, i, fmt.Sprintf("fixes #%d", 100+i), 100+i, goFiles())
	}
	model := testutil.NewMockModel("")
	model.Respond = func(prompt string) (string, error) {
		if strings.Contains(prompt, "issue-101:") || strings.Contains(prompt, "issue-103:") {
			return goodJSON, nil
		}
		return `{"result":"Bad PR","comment":"vague"}`, nil
	}

	pl := newPipeline(t, src, quality.New(model), "Go", nil)
	res, err := pl.Scan(context.Background(), "o", "r", nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(res.Relevant) != 5 {
		t.Fatalf("expected 5 relevant PRs, got %d", len(res.Relevant))
	}
	if model.Calls() != 3 {
		t.Errorf("expected processing to stop after the third PR, got %d calls", model.Calls())
	}
	for _, n := range []int{4, 5} {
		if _, ok := res.Verdicts[n]; ok {
			t.Errorf("PR %d must not be classified", n)
		}
	}
	if !res.Passed || res.GoodCount != 2 {
		t.Errorf("expected success with 2 Good verdicts, got passed=%v good=%d", res.Passed, res.GoodCount)
	}
}

func TestFindRelevant_SkipReasons(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 1, "no reference here", 0, goFiles())
	addPR(src, 2, "fixes #20", 0, goFiles()) // issue missing
	addPR(src, 3, "fixes #30", 0, goFiles())
	src.SetIssue(&types.Issue{Number: 30, Body: issueBody(30), IsPullRequest: true})
	addPR(src, 4, "fixes #40", 0, goFiles())
	src.SetIssue(&types.Issue{Number: 40, Body: "导出器在进程收到信号时丢失最后一批指标数据，需要在退出前刷新所有待处理批次。"})
	addPR(src, 5, "fixes #50", 50, nil)
	addPR(src, 6, "fixes #60", 60, goFiles())
	src.SetError("ChangedFiles:6", errors.New("boom"))
	addPR(src, 7, "fixes #70", 70, goFiles())

	pl := newPipeline(t, src, quality.New(testutil.NewMockModel(goodJSON)), "Go", nil)

	wantReasons := map[int]string{
		1: "no unique issue reference",
		2: "issue #20 unavailable",
		3: "#30 is a pull request",
		4: "not in English",
		5: classify.ReasonNoFiles,
		6: "changed files unavailable",
	}
	prs, err := src.MergedPullRequests(context.Background(), "o", "r", cutoff)
	if err != nil {
		t.Fatal(err)
	}
	for _, pr := range prs {
		r, reason := pl.evaluate(context.Background(), "o", "r", pr)
		want, skip := wantReasons[pr.Number]
		if !skip {
			if r == nil {
				t.Errorf("PR %d unexpectedly skipped: %s", pr.Number, reason)
			}
			continue
		}
		if r != nil || !strings.Contains(reason, want) {
			t.Errorf("PR %d: reason %q, want it to contain %q", pr.Number, reason, want)
		}
	}

	relevant, total, err := pl.FindRelevant(context.Background(), "o", "r")
	if err != nil {
		t.Fatal(err)
	}
	if total != 7 || len(relevant) != 1 || relevant[0].PR.Number != 7 {
		t.Errorf("expected only PR 7 relevant of 7, got %d of %d", len(relevant), total)
	}
}

func TestFindRelevant_EnglishFilterOptional(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 4, "fixes #40", 0, goFiles())
	src.SetIssue(&types.Issue{Number: 40, Body: "导出器在进程收到信号时丢失最后一批指标数据，需要在退出前刷新所有待处理批次。"})

	pl := newPipeline(t, src, quality.New(testutil.NewMockModel(goodJSON)), "Go", func(c *Config) {
		c.RequireEnglish = false
	})
	relevant, _, err := pl.FindRelevant(context.Background(), "o", "r")
	if err != nil {
		t.Fatal(err)
	}
	if len(relevant) != 1 {
		t.Errorf("expected the PR to pass with the English filter disabled")
	}
}

func TestFindRelevant_ListingFailureKeepsScanning(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	src.SetError("MergedPullRequests", errors.New("rate limited"))

	pl := newPipeline(t, src, quality.New(testutil.NewMockModel(goodJSON)), "Go", nil)
	res, err := pl.Scan(context.Background(), "o", "r", nil)
	if err != nil {
		t.Fatalf("expected listing failure to be absorbed, got %v", err)
	}
	if res.TotalPRs != 0 || len(res.Relevant) != 0 || res.Passed {
		t.Errorf("expected empty unsuccessful result, got %+v", res)
	}
}

func TestCheckQuality_Fraction(t *testing.T) {
	relevant := make([]types.RelevantPR, 5)
	for i := range relevant {
		relevant[i] = types.RelevantPR{PR: types.PullRequest{Number: i + 1}, Issue: &types.Issue{Body: issueBody(i + 1)}}
	}
	model := testutil.NewMockModel(`{"result":"Bad PR","comment":"no"}`)

	pl := newPipeline(t, testutil.NewMockGitHubClient(), quality.New(model), "Go", func(c *Config) {
		c.QualityFraction = 0.5
	})
	verdicts, good := pl.CheckQuality(context.Background(), relevant)
	if len(verdicts) != 3 || good != 0 {
		t.Errorf("expected the first 3 of 5 PRs checked, got %d", len(verdicts))
	}
	if _, ok := verdicts[4]; ok {
		t.Error("PR 4 lies outside the checked prefix")
	}
}

// blockingChecker counts concurrent calls and answers Good.
type blockingChecker struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
	active  int
	peak    int
}

func (b *blockingChecker) Classify(context.Context, string, *profile.Profile) types.QualityVerdict {
	b.mu.Lock()
	b.calls++
	b.active++
	b.peak = max(b.peak, b.active)
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return types.QualityVerdict{Verdict: types.VerdictGood, Comment: "ok"}
}

func TestCheckQuality_ParallelBoundedAndStopsSubmitting(t *testing.T) {
	relevant := make([]types.RelevantPR, 20)
	for i := range relevant {
		relevant[i] = types.RelevantPR{PR: types.PullRequest{Number: i + 1}, Issue: &types.Issue{Body: issueBody(i + 1)}}
	}
	checker := &blockingChecker{release: make(chan struct{})}
	close(checker.release)

	pl := newPipeline(t, testutil.NewMockGitHubClient(), checker, "Go", func(c *Config) {
		c.Workers = 3
		c.TargetGood = 2
	})
	verdicts, good := pl.CheckQuality(context.Background(), relevant)

	if checker.peak > 3 {
		t.Errorf("expected at most 3 concurrent checks, saw %d", checker.peak)
	}
	if good < 2 || good != len(verdicts) {
		t.Errorf("expected every finished check counted, got good=%d verdicts=%d", good, len(verdicts))
	}
	// Every started check saw fewer than TargetGood results, so at most
	// TargetGood + Workers - 1 checks can start.
	if checker.calls > 2+3-1 {
		t.Errorf("expected no checks to start after the target was reached, got %d calls", checker.calls)
	}
}

type recordingSink struct {
	events []string
}

func (r *recordingSink) WriteProgress(_ context.Context, _, _ string, total, relevant int) error {
	r.events = append(r.events, fmt.Sprintf("progress %d/%d", relevant, total))
	return nil
}

func (r *recordingSink) WriteRecords(_ context.Context, _, _ string, records []types.ReportRecord) error {
	r.events = append(r.events, fmt.Sprintf("records %d", len(records)))
	return nil
}

func (r *recordingSink) WriteOutcome(_ context.Context, res *types.ScanResult) error {
	r.events = append(r.events, fmt.Sprintf("outcome %v", res.Passed))
	return nil
}

func TestScan_SinkOrdering(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 1, "fixes #11", 11, goFiles())
	addPR(src, 2, "fixes #12", 12, goFiles())
	addPR(src, 3, "docs only, see #13", 13, []types.ChangedFile{{Filename: "README.md", Additions: 3}})

	sink := &recordingSink{}
	pl := newPipeline(t, src, quality.New(testutil.NewMockModel(goodJSON)), "Go", nil)
	if _, err := pl.Scan(context.Background(), "o", "r", sink); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"progress 2/3", "records 2", "outcome true"}
	if strings.Join(sink.events, ",") != strings.Join(want, ",") {
		t.Errorf("sink events = %v, want %v", sink.events, want)
	}
}

func TestNew_Validation(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	checker := quality.New(testutil.NewMockModel(goodJSON))
	if _, err := New(nil, checker, Config{}); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := New(src, checker, Config{}); err == nil {
		t.Error("expected error for missing profile")
	}
	reg := profile.Default()
	p, _ := reg.Lookup("Go")
	if _, err := New(src, checker, Config{Profile: p, Registry: reg, QualityFraction: 1.5}); err == nil {
		t.Error("expected error for fraction above 1")
	}
}

type cancelingChecker struct {
	cancel context.CancelFunc
}

func (c *cancelingChecker) Classify(context.Context, string, *profile.Profile) types.QualityVerdict {
	c.cancel()
	return types.QualityVerdict{Verdict: types.VerdictBad, Comment: "LLM analysis failed: context canceled"}
}

func TestScan_CancelledDuringQualityLeavesOutcomeUnwritten(t *testing.T) {
	src := testutil.NewMockGitHubClient()
	addPR(src, 1, "fixes #11", 11, goFiles())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	pl := newPipeline(t, src, &cancelingChecker{cancel: cancel}, "Go", nil)

	_, err := pl.Scan(ctx, "o", "r", sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan error = %v, want context.Canceled", err)
	}
	if strings.Join(sink.events, ",") != "progress 1/1" {
		t.Errorf("sink events = %v, want only progress", sink.events)
	}
}
