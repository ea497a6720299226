// Package main implements a CLI that scans repositories for relevant merged pull requests.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/classify"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/cli"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/config"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/llm"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/pipeline"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/quality"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/report"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/store"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")
	repoFlag   = flag.String("repo", "", "Scan a single repository (owner/repo or URL) instead of the pending queue")
	language   = flag.String("language", "", "Target language profile (overrides scan.language)")
	limit      = flag.Int("limit", 0, "Maximum number of pending repositories to scan (0 = all)")
	verbose    = flag.Bool("v", false, "Verbose output with detailed diagnostics")
	jsonLogs   = flag.Bool("json", false, "Emit JSON logs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Finds merged pull requests that fix a single issue with tests and source changes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -repo apache/commons-lang\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -language Python -limit 10\n", os.Args[0])
	}
	flag.Parse()
	cli.SetupLogging(*verbose, *jsonLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("pr-evaluator failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := cli.LoadConfig(ctx, *configPath, true)
	if err != nil {
		return err
	}
	if *language != "" {
		cfg.Scan.Language = *language
	}

	reg, err := profile.Load(cfg.ProfilesPath)
	if err != nil {
		slog.Warn("Language profiles", "component", "config", "error", err)
	}
	prof, err := reg.Lookup(cfg.Scan.Language)
	if err != nil {
		return err
	}

	client, err := cli.NewGitHubClient(cfg)
	if err != nil {
		return err
	}
	model, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, client, quality.New(model), reg, prof)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close store", "component", "store", "error", err)
		}
	}()
	csv, err := report.NewCSVSink(cfg.ReportDir)
	if err != nil {
		return err
	}
	sink := report.MultiSink{csv, db}

	if *repoFlag != "" {
		owner, repo, err := cli.ParseRepo(*repoFlag)
		if err != nil {
			return err
		}
		res, err := p.Scan(ctx, owner, repo, sink)
		if res != nil {
			printResult(res, csv.Path(owner, repo))
		}
		return err
	}

	pending, err := db.PendingScans(ctx, prof.Name)
	if err != nil {
		return err
	}
	if *limit > 0 && len(pending) > *limit {
		pending = pending[:*limit]
	}
	slog.Info("Scanning pending repositories", "component", "pipeline", "count", len(pending), "language", prof.Name)

	var passed, failed int
	for i, fullName := range pending {
		owner, repo, err := cli.ParseRepo(fullName)
		if err != nil {
			slog.Warn("Skipping malformed store entry", "component", "store", "repo", fullName, "error", err)
			failed++
			continue
		}
		slog.Info("Processing repository", "component", "pipeline", "repo", fullName, "position", i+1, "total", len(pending))
		res, err := p.Scan(ctx, owner, repo, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Warn("Scan incomplete", "component", "pipeline", "repo", fullName, "error", err)
			failed++
		}
		if res != nil {
			printResult(res, csv.Path(owner, repo))
			if res.Passed {
				passed++
			}
		}
	}

	slog.Info("All pending repositories processed", "component", "pipeline",
		"repos", len(pending), "passed", passed, "failed", failed)
	if failed > 0 {
		return errors.New("some repositories could not be scanned")
	}
	return nil
}

func newPipeline(cfg *config.Config, src pipeline.Source, checker pipeline.Checker, reg *profile.Registry, prof *profile.Profile) (*pipeline.Pipeline, error) {
	cutoff, err := cfg.Scan.Cutoff()
	if err != nil {
		return nil, err
	}
	return pipeline.New(src, checker, pipeline.Config{
		MergedAfter: cutoff,
		Profile:     prof,
		Registry:    reg,
		Classify: classify.Options{
			MinTestFiles:    cfg.Scan.MinTestFiles,
			MinSourceFiles:  cfg.Scan.MinSourceFiles,
			MinChangedLines: cfg.Scan.MinChangedLines,
		},
		EnglishThreshold: cfg.Scan.EnglishThreshold,
		QualityFraction:  cfg.Scan.QualityFraction,
		LLMDelay:         cfg.Scan.LLMDelay,
		TargetGood:       cfg.Scan.TargetGood,
		Workers:          cfg.Scan.Workers,
		RequireEnglish:   !cfg.Scan.AllowNonEnglish,
	})
}

func printResult(res *types.ScanResult, csvPath string) {
	status := "❌ not enough good PRs"
	if res.Passed {
		status = "✅ passed"
	}
	fmt.Printf("\n📦 %s: %s\n", res.FullName(), status)
	fmt.Printf("   Merged PRs scanned: %d\n", res.TotalPRs)
	fmt.Printf("   Relevant PRs: %d\n", len(res.Relevant))
	fmt.Printf("   Good PRs: %d (target %d)\n", res.GoodCount, res.TargetGood)
	for _, r := range res.Relevant {
		v, ok := res.Verdicts[r.PR.Number]
		if !ok {
			continue
		}
		fmt.Printf("   #%d -> issue #%d: %s\n", r.PR.Number, r.IssueNumber, v.Verdict)
	}
	fmt.Printf("   Report: %s\n", csvPath)
}
