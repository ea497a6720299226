package classify

import (
	"reflect"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

func files(names ...string) []types.ChangedFile {
	out := make([]types.ChangedFile, len(names))
	for i, n := range names {
		out[i] = types.ChangedFile{Filename: n, Additions: 10, Deletions: 5}
	}
	return out
}

func lookup(t *testing.T, reg *profile.Registry, name string) *profile.Profile {
	t.Helper()
	p, err := reg.Lookup(name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClassify(t *testing.T) {
	reg := profile.Default()

	tests := []struct {
		name       string
		lang       string
		files      []types.ChangedFile
		opts       Options
		wantPass   bool
		wantReason string
	}{
		{
			name:     "two tests two sources",
			lang:     "Go",
			files:    files("a.go", "b.go", "a_test.go", "b_test.go", "README.md", "go.mod"),
			opts:     DefaultOptions(),
			wantPass: true,
		},
		{
			name:       "foreign file rejects regardless of counts",
			lang:       "JavaScript",
			files:      files("src/a.js", "src/b.js", "src/a.test.js", "src/b.test.js", "src/Legacy.java"),
			opts:       DefaultOptions(),
			wantReason: ReasonForeign,
		},
		{
			name:       "unknown extension rejects",
			lang:       "Go",
			files:      files("a.go", "b.go", "a_test.go", "b_test.go", "Dockerfile"),
			opts:       DefaultOptions(),
			wantReason: ReasonUnknown,
		},
		{
			name:       "foreign wins over unknown",
			lang:       "Go",
			files:      files("tool.zig", "script.py"),
			opts:       DefaultOptions(),
			wantReason: ReasonForeign,
		},
		{
			name:       "one test file",
			lang:       "Python",
			files:      files("pkg/a.py", "pkg/b.py", "tests/test_a.py"),
			opts:       DefaultOptions(),
			wantReason: "only 1 test file(s)",
		},
		{
			name:       "one source file",
			lang:       "Java",
			files:      files("src/main/java/A.java", "src/test/java/ATest.java", "src/test/java/BTest.java"),
			opts:       DefaultOptions(),
			wantReason: "only 1 non-test source file(s)",
		},
		{
			name: "too few changed lines",
			lang: "Go",
			files: []types.ChangedFile{
				{Filename: "a.go", Additions: 3, Deletions: 1},
				{Filename: "b.go", Additions: 2},
				{Filename: "a_test.go", Additions: 100},
				{Filename: "b_test.go", Additions: 100},
			},
			opts:       DefaultOptions(),
			wantReason: "only 6 changed line(s)",
		},
		{
			name: "changed line gate disabled",
			lang: "Go",
			files: []types.ChangedFile{
				{Filename: "a.go", Additions: 1},
				{Filename: "b.go", Additions: 1},
				{Filename: "a_test.go", Additions: 1},
				{Filename: "b_test.go", Additions: 1},
			},
			opts:     Options{MinTestFiles: 2, MinSourceFiles: 2},
			wantPass: true,
		},
		{
			name:       "duplicate test file counted once",
			lang:       "Go",
			files:      files("a.go", "b.go", "a_test.go", "a_test.go"),
			opts:       DefaultOptions(),
			wantReason: "only 1 test file(s)",
		},
		{
			name:     "snapshots count as tests",
			lang:     "JavaScript",
			files:    files("src/a.js", "src/b.js", "src/__snapshots__/a.js.snap", "src/b.test.js"),
			opts:     DefaultOptions(),
			wantPass: true,
		},
		{
			name:       "empty file list",
			lang:       "Go",
			opts:       DefaultOptions(),
			wantReason: ReasonNoFiles,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.files, lookup(t, reg, tt.lang), reg, tt.opts)
			if got.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v (reason %q)", got.Passed, tt.wantPass, got.Reason)
			}
			if tt.wantReason != "" && !strings.HasPrefix(got.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want prefix %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestClassify_EveryFileInOneBucket(t *testing.T) {
	reg := profile.Default()
	in := files("a.go", "a_test.go", "go.sum", "docs/guide.md", "web/app.ts", "build/Dockerfile", "x.snap")

	got := Classify(in, lookup(t, reg, "Go"), reg, DefaultOptions())
	c := got.ChangeClassification

	buckets := [][]string{c.Tests, c.Sources, c.Dependencies, c.Foreign, c.Unknown, c.Ignored}
	count := make(map[string]int)
	for _, b := range buckets {
		for _, f := range b {
			count[f]++
		}
	}
	for _, f := range in {
		if count[f.Filename] != 1 {
			t.Errorf("%s assigned to %d buckets", f.Filename, count[f.Filename])
		}
	}
	if c.NonTestSourceLines != 15 {
		t.Errorf("expected 15 non-test source lines, got %d", c.NonTestSourceLines)
	}
	if len(c.Matched()) != 3 {
		t.Errorf("expected 3 matched files, got %v", c.Matched())
	}
}

func TestClassify_Idempotent(t *testing.T) {
	reg := profile.Default()
	active := lookup(t, reg, "TypeScript")
	in := files("src/a.ts", "src/b.tsx", "src/a.spec.ts", "src/b.test.tsx", "package.json")
	snapshot := append([]types.ChangedFile(nil), in...)

	first := Classify(in, active, reg, DefaultOptions())
	second := Classify(in, active, reg, DefaultOptions())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify is not idempotent:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(in, snapshot) {
		t.Error("Classify modified its input")
	}
	if !first.Passed {
		t.Errorf("expected pass, got %q", first.Reason)
	}
}
