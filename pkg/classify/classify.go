// Package classify partitions a pull request's changed files and applies the file gates.
package classify

import (
	"fmt"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// Rejection reasons that callers may match on.
const (
	ReasonNoFiles = "no files found in PR"
	ReasonForeign = "foreign language file"
	ReasonUnknown = "unknown file type"
)

// Options are the file gate thresholds.
type Options struct {
	MinTestFiles    int
	MinSourceFiles  int
	MinChangedLines int // 0 disables the changed-line gate
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{MinTestFiles: 2, MinSourceFiles: 2, MinChangedLines: 20}
}

// Result is the classification plus the gate outcome.
type Result struct {
	Reason string
	types.ChangeClassification
	Passed bool
}

// Classify assigns every file to one bucket and evaluates the gates in order:
// foreign files, unknown files, test count, source count, changed lines.
// It does not modify files and has no other state.
func Classify(files []types.ChangedFile, active *profile.Profile, reg *profile.Registry, opts Options) Result {
	var res Result
	if len(files) == 0 {
		res.Reason = ReasonNoFiles
		return res
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Filename] {
			continue
		}
		seen[f.Filename] = true

		c := &res.ChangeClassification
		ext := profile.Ext(f.Filename)
		switch {
		case active.IsDependencyFile(f.Filename):
			c.Dependencies = append(c.Dependencies, f.Filename)
		case reg.IsNonCode(ext):
			c.Ignored = append(c.Ignored, f.Filename)
		case reg.IsUniversalTest(ext):
			c.Tests = append(c.Tests, f.Filename)
		case active.HasSource(ext):
			if active.IsTestFile(f.Filename) {
				c.Tests = append(c.Tests, f.Filename)
			} else {
				c.Sources = append(c.Sources, f.Filename)
				c.NonTestSourceLines += f.Additions + f.Deletions
			}
		case reg.IsForeign(ext, active):
			c.Foreign = append(c.Foreign, f.Filename)
		default:
			c.Unknown = append(c.Unknown, f.Filename)
		}
	}

	c := res.ChangeClassification
	switch {
	case len(c.Foreign) > 0:
		res.Reason = fmt.Sprintf("%s: %s", ReasonForeign, c.Foreign[0])
	case len(c.Unknown) > 0:
		res.Reason = fmt.Sprintf("%s: %s", ReasonUnknown, c.Unknown[0])
	case len(c.Tests) < opts.MinTestFiles:
		res.Reason = fmt.Sprintf("only %d test file(s) found; at least %d required", len(c.Tests), opts.MinTestFiles)
	case len(c.Sources) < opts.MinSourceFiles:
		res.Reason = fmt.Sprintf("only %d non-test source file(s) found; at least %d required", len(c.Sources), opts.MinSourceFiles)
	case opts.MinChangedLines > 0 && c.NonTestSourceLines < opts.MinChangedLines:
		res.Reason = fmt.Sprintf("only %d changed line(s) in non-test source files; at least %d required", c.NonTestSourceLines, opts.MinChangedLines)
	default:
		res.Passed = true
		res.Reason = fmt.Sprintf("all %s file checks passed", active.Name)
	}
	return res
}
