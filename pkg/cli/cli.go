// Package cli holds the setup shared by the evaluator command-line tools.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/config"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/github"
)

// SetupLogging installs the default slog logger.
func SetupLogging(verbose, jsonOutput bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// LoadConfig loads and validates configuration. When no credentials are
// configured, the token of an authenticated gh CLI is used.
// requireLLM selects full validation instead of GitHub-only.
func LoadConfig(ctx context.Context, path string, requireLLM bool) (*config.Config, error) {
	cfg, src, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded configuration", "component", "config", "source", src.String())

	if len(cfg.GitHub.Tokens) == 0 && !cfg.UsesApp() {
		if token, err := ghToken(ctx); err == nil && token != "" {
			slog.Info("Using token from gh CLI", "component", "config")
			cfg.GitHub.Tokens = []string{token}
		}
	}

	validate := cfg.ValidateGitHub
	if requireLLM {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ghToken retrieves the GitHub token from gh CLI.
func ghToken(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub token: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Credentials builds the credential list: personal tokens first, then the GitHub App installation.
func Credentials(cfg *config.Config) ([]github.Credential, error) {
	creds, err := github.TokenCredentials(cfg.GitHub.Tokens)
	if err != nil {
		return nil, err
	}
	if cfg.UsesApp() {
		src, err := github.NewAppTokenSource(github.AppConfig{
			AppID:          cfg.GitHub.AppID,
			KeyPath:        cfg.GitHub.AppKeyPath,
			InstallationID: cfg.GitHub.InstallationID,
			BaseURL:        cfg.GitHub.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("github app credentials: %w", err)
		}
		creds = append(creds, github.Credential{Name: "app-" + cfg.GitHub.AppID, Source: src})
	}
	return creds, nil
}

// NewGitHubClient creates the rate-limited GitHub client described by cfg.
func NewGitHubClient(cfg *config.Config) (*github.Client, error) {
	creds, err := Credentials(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := github.NewCredentialPool(creds...)
	if err != nil {
		return nil, err
	}

	cacheDir, err := CacheDir(cfg.GitHub.CacheDir)
	if err != nil {
		return nil, err
	}
	slog.Info("GitHub client ready", "component", "api", "credentials", pool.Len(), "cache_dir", cacheDir)

	return github.New(github.Config{
		Pool:               pool,
		BaseURL:            cfg.GitHub.BaseURL,
		CacheDir:           cacheDir,
		ResetBuffer:        cfg.GitHub.ResetBuffer,
		MaxRateLimitWait:   cfg.GitHub.MaxRateLimitWait,
		HTTPTimeout:        cfg.GitHub.HTTPTimeout,
		PageDelay:          cfg.Scan.PageDelay,
		MaxRateLimitPasses: cfg.GitHub.MaxRateLimitPasses,
	})
}

// CacheDir resolves the disk cache directory. An empty dir selects the user
// cache directory; "-" disables the disk tier.
func CacheDir(dir string) (string, error) {
	switch dir {
	case "-":
		return "", nil
	case "":
		base, err := os.UserCacheDir()
		if err != nil {
			slog.Warn("No user cache directory, using memory cache only", "component", "config", "error", err)
			return "", nil
		}
		return filepath.Join(base, "repo-evaluator"), nil
	default:
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolving cache dir %q: %w", dir, err)
		}
		return abs, nil
	}
}

// ParseRepo parses "owner/repo" or a GitHub repository URL.
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/repo or https://github.com/owner/repo)", s)
	}
	return parts[0], parts[1], nil
}
