// Package config loads evaluator settings from YAML, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Source reports where the configuration came from.
type Source int

// Configuration sources.
const (
	SourceDefaults Source = iota // no file; built-in defaults plus environment
	SourceFile
)

func (s Source) String() string {
	if s == SourceFile {
		return "file"
	}
	return "defaults"
}

// Config is the full run configuration.
//
// cleanenv only applies env-default to zero-valued fields, so zero in the YAML
// file means "use the default". Negative thresholds disable a gate.
type Config struct {
	GitHub       GitHub     `yaml:"github"`
	LLM          LLM        `yaml:"llm"`
	StorePath    string     `yaml:"store_path" env:"STORE_PATH" env-default:"data/evaluator.db"`
	ReportDir    string     `yaml:"report_dir" env:"REPORT_DIR" env-default:"reports"`
	ProfilesPath string     `yaml:"profiles_path" env:"PROFILES_PATH"`
	RepoChecks   RepoChecks `yaml:"repo_checks"`
	Scan         Scan       `yaml:"scan"`
}

// GitHub holds API access settings.
type GitHub struct {
	AppID              string        `yaml:"app_id" env:"GITHUB_APP_ID"`
	AppKeyPath         string        `yaml:"app_key_path" env:"GITHUB_APP_KEY_PATH"`
	BaseURL            string        `yaml:"base_url" env:"GITHUB_API_URL" env-default:"https://api.github.com"`
	CacheDir           string        `yaml:"cache_dir" env:"CACHE_DIR"`
	Tokens             []string      `yaml:"tokens" env:"GITHUB_TOKENS" env-separator:","`
	InstallationID     int64         `yaml:"installation_id" env:"GITHUB_APP_INSTALLATION_ID"`
	HTTPTimeout        time.Duration `yaml:"http_timeout" env:"GITHUB_HTTP_TIMEOUT" env-default:"30s"`
	ResetBuffer        time.Duration `yaml:"reset_buffer" env:"GITHUB_RESET_BUFFER" env-default:"5s"`
	MaxRateLimitWait   time.Duration `yaml:"max_rate_limit_wait" env:"GITHUB_MAX_RATE_LIMIT_WAIT" env-default:"1h"`
	MaxRateLimitPasses int           `yaml:"max_rate_limit_passes" env:"GITHUB_MAX_RATE_LIMIT_PASSES" env-default:"2"`
}

// LLM holds quality-model settings.
type LLM struct {
	APIKey  string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL string        `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Model   string        `yaml:"model" env:"LLM_MODEL" env-default:"o3-mini"`
	Timeout time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"2m"`
}

// Scan holds relevance-pipeline settings.
type Scan struct {
	Language         string        `yaml:"language" env:"SCAN_LANGUAGE" env-default:"Java"`
	MergedAfter      string        `yaml:"merged_after" env:"SCAN_MERGED_AFTER" env-default:"2024-11-01T00:00:00Z"`
	TargetGood       int           `yaml:"target_good" env:"SCAN_TARGET_GOOD" env-default:"2"`
	MinTestFiles     int           `yaml:"min_test_files" env:"SCAN_MIN_TEST_FILES" env-default:"2"`
	MinSourceFiles   int           `yaml:"min_source_files" env:"SCAN_MIN_SOURCE_FILES" env-default:"2"`
	MinChangedLines  int           `yaml:"min_changed_lines" env:"SCAN_MIN_CHANGED_LINES" env-default:"20"`
	EnglishThreshold float64       `yaml:"english_threshold" env:"SCAN_ENGLISH_THRESHOLD" env-default:"0.9"`
	QualityFraction  float64       `yaml:"quality_fraction" env:"SCAN_QUALITY_FRACTION" env-default:"1.0"`
	Workers          int           `yaml:"workers" env:"SCAN_WORKERS" env-default:"1"`
	LLMDelay         time.Duration `yaml:"llm_delay" env:"SCAN_LLM_DELAY" env-default:"1s"`
	PageDelay        time.Duration `yaml:"page_delay" env:"SCAN_PAGE_DELAY" env-default:"500ms"`
	AllowNonEnglish  bool          `yaml:"allow_non_english" env:"SCAN_ALLOW_NON_ENGLISH"`
}

// RepoChecks holds repository-level acceptance thresholds.
type RepoChecks struct {
	LOCThresholds      map[int]int `yaml:"loc_thresholds"`
	LOCURL             string      `yaml:"loc_url" env:"LOC_API_URL"`
	MinStars           int         `yaml:"min_stars" env:"REPO_MIN_STARS" env-default:"400"`
	MinLanguagePercent float64     `yaml:"min_language_percent" env:"REPO_MIN_LANGUAGE_PERCENT" env-default:"70"`
}

// DefaultLOCThresholds maps minimum stars to required lines of code.
func DefaultLOCThresholds() map[int]int {
	return map[int]int{400: 150000, 450: 120000, 500: 100000, 800: 75000, 1500: 60000}
}

// Load reads .env (without overriding the environment), then the YAML file at
// path, then environment variables. A missing file is not an error: defaults and
// environment are used and SourceDefaults is returned.
func Load(path string) (*Config, Source, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, SourceDefaults, err
	}

	var cfg Config
	src := SourceDefaults
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			src = SourceFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, SourceDefaults, fmt.Errorf("checking config file: %w", err)
		} else {
			slog.Warn("Config file not found, using defaults", "component", "config", "path", path)
		}
	}

	if src == SourceFile {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, src, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, src, fmt.Errorf("reading environment: %w", err)
	}

	if len(cfg.RepoChecks.LOCThresholds) == 0 {
		cfg.RepoChecks.LOCThresholds = DefaultLOCThresholds()
	}
	cfg.GitHub.Tokens = cleanTokens(cfg.GitHub.Tokens)
	return &cfg, src, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// cleanTokens trims tokens and drops empties; whitespace-separated lists are accepted too.
func cleanTokens(raw []string) []string {
	var out []string
	for _, entry := range raw {
		out = append(out, strings.Fields(entry)...)
	}
	return out
}

// UsesApp reports whether GitHub App credentials are configured.
func (c *Config) UsesApp() bool {
	return c.GitHub.AppID != "" || c.GitHub.AppKeyPath != "" || c.GitHub.InstallationID != 0
}

// ValidateGitHub checks that at least one usable GitHub credential is configured.
func (c *Config) ValidateGitHub() error {
	if c.UsesApp() {
		switch {
		case c.GitHub.AppID == "":
			return errors.New("GITHUB_APP_ID is required when using GitHub App credentials")
		case c.GitHub.AppKeyPath == "":
			return errors.New("GITHUB_APP_KEY_PATH is required when using GitHub App credentials")
		case c.GitHub.InstallationID <= 0:
			return errors.New("GITHUB_APP_INSTALLATION_ID is required when using GitHub App credentials")
		}
	} else if len(c.GitHub.Tokens) == 0 {
		return errors.New("no GitHub credentials: set GITHUB_TOKENS or the GITHUB_APP_* variables")
	}
	if c.GitHub.MaxRateLimitPasses < 1 {
		return fmt.Errorf("max rate limit passes must be at least 1, got %d", c.GitHub.MaxRateLimitPasses)
	}
	return nil
}

// Validate checks everything the relevance pipeline needs.
func (c *Config) Validate() error {
	if err := c.ValidateGitHub(); err != nil {
		return err
	}
	if c.LLM.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if _, err := c.Scan.Cutoff(); err != nil {
		return err
	}
	if f := c.Scan.QualityFraction; f < 0 || f > 1 {
		return fmt.Errorf("quality fraction %v out of range [0,1]", f)
	}
	if c.Scan.TargetGood < 1 {
		return fmt.Errorf("target good must be at least 1, got %d", c.Scan.TargetGood)
	}
	return nil
}

// Cutoff parses MergedAfter. Dates without a time are accepted.
func (s Scan) Cutoff() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s.MergedAfter); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid merged_after %q: want RFC 3339 or YYYY-MM-DD", s.MergedAfter)
}
