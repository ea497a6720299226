// Package main implements a CLI that runs the repository-level checks and seeds the store.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/cache"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/cli"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/repocheck"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/store"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")
	listPath   = flag.String("file", "", "File with one repository (owner/repo or URL) per line")
	language   = flag.String("language", "", "Target language profile (overrides scan.language)")
	verbose    = flag.Bool("v", false, "Verbose output with detailed diagnostics")
	jsonLogs   = flag.Bool("json", false, "Emit JSON logs")
)

// codetabs can take minutes on large repositories.
const locTimeout = 10 * time.Minute

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [owner/repo ...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Checks language share, stars and lines of code, and records accepted repositories.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	cli.SetupLogging(*verbose, *jsonLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("repo-checker failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	repos, err := repositories(flag.Args(), *listPath)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		flag.Usage()
		return errors.New("no repositories given")
	}

	cfg, err := cli.LoadConfig(ctx, *configPath, false)
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
	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("Failed to close store", "component", "store", "error", err)
		}
	}()

	cacheDir, err := cli.CacheDir(cfg.GitHub.CacheDir)
	if err != nil {
		return err
	}
	locCache, err := cache.NewDiskCache[int](cache.TTLLinesOfCode, cacheDir, "loc")
	if err != nil {
		return err
	}
	counter := repocheck.NewLOCCounter(&http.Client{Timeout: locTimeout}, locCache, cfg.RepoChecks.LOCURL)

	checker := repocheck.New(client, counter, db, prof.GitHubLanguage, repocheck.Options{
		LOCThresholds:      cfg.RepoChecks.LOCThresholds,
		MinStars:           cfg.RepoChecks.MinStars,
		MinLanguagePercent: cfg.RepoChecks.MinLanguagePercent,
	})

	var accepted, failed int
	for i, name := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		owner, repo, err := cli.ParseRepo(name)
		if err != nil {
			slog.Warn("Skipping repository", "component", "repocheck", "input", name, "error", err)
			failed++
			continue
		}
		fullName := owner + "/" + repo
		slog.Info("Evaluating repository", "component", "repocheck", "repo", fullName, "position", i+1, "total", len(repos))

		ev, err := checker.Evaluate(ctx, fullName)
		if err != nil {
			slog.Warn("Evaluation failed", "component", "repocheck", "repo", fullName, "error", err)
			failed++
			continue
		}
		fmt.Printf("%-50s %-4s %s\n", fullName, verdict(ev.ShouldAdd, ev.ManualReview), ev.Reason)
		if ev.AlreadyExists {
			continue
		}
		ev.Language = prof.Name
		if err := db.UpsertEvaluation(ctx, ev); err != nil {
			return err
		}
		if ev.ShouldAdd {
			accepted++
		}
	}

	slog.Info("Repository checks complete", "component", "repocheck", "repos", len(repos), "accepted", accepted, "failed", failed)
	return nil
}

func verdict(add, manual bool) string {
	switch {
	case add:
		return "Yes"
	case manual:
		return "??"
	default:
		return "No"
	}
}

// repositories merges positional arguments with the lines of listPath.
// Blank lines and lines starting with # are ignored.
func repositories(args []string, listPath string) ([]string, error) {
	repos := append([]string(nil), args...)
	if listPath == "" {
		return repos, nil
	}
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		repos = append(repos, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading repository list: %w", err)
	}
	return repos, nil
}
