package quality

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/internal/testutil"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

const actionable = "When the config file contains a trailing comma the loader panics with an index out of range error. " +
	"Steps: create config.json with a trailing comma and run `app start`."

func goProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Default().Lookup("Go")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClassify_ShortBodySkipsModel(t *testing.T) {
	model := testutil.NewMockModel(`{"result":"Good PR","comment":"ok"}`)
	c := New(model)

	for _, body := range []string{"", "   ", "Fix the crash", strings.Repeat(" x", 24), strings.Repeat("修", 20), strings.Repeat("é", 49)} {
		got := c.Classify(context.Background(), body, goProfile(t))
		if got.Verdict != types.VerdictBad || !strings.Contains(got.Comment, "too short") {
			t.Errorf("Classify(%q) = %+v, want Bad/too short", body, got)
		}
	}
	if model.Calls() != 0 {
		t.Errorf("expected no model calls, got %d", model.Calls())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		err         error
		wantVerdict types.Verdict
		wantComment string
	}{
		{"good", `{"result":"Good PR","comment":"Clear bug report."}`, nil, types.VerdictGood, "Clear bug report."},
		{"bad", `{"result":"Bad PR","comment":"Just a question."}`, nil, types.VerdictBad, "Just a question."},
		{"short label", `{"result":"good","comment":"fine"}`, nil, types.VerdictGood, "fine"},
		{"fenced json", "```json\n{\"result\":\"Good PR\",\"comment\":\"ok\"}\n```", nil, types.VerdictGood, "ok"},
		{"missing comment", `{"result":"Good PR"}`, nil, types.VerdictGood, "missing comment"},
		{"missing result", `{"comment":"hmm"}`, nil, types.VerdictBad, "missing"},
		{"unknown verdict", `{"result":"Maybe","comment":"?"}`, nil, types.VerdictBad, "unrecognized verdict"},
		{"not json", `I think this is good`, nil, types.VerdictBad, "LLM analysis failed"},
		{"model error", "", errors.New("connection reset"), types.VerdictBad, "connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testutil.NewMockModel(tt.response)
			model.Err = tt.err
			got := New(model).Classify(context.Background(), actionable, goProfile(t))

			if got.Verdict != tt.wantVerdict {
				t.Errorf("Verdict = %q, want %q", got.Verdict, tt.wantVerdict)
			}
			if !strings.Contains(got.Comment, tt.wantComment) {
				t.Errorf("Comment = %q, want it to contain %q", got.Comment, tt.wantComment)
			}
			if model.Calls() != 1 {
				t.Errorf("expected exactly one model call, got %d", model.Calls())
			}
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(actionable, goProfile(t))
	for _, want := range []string{actionable, "Go repository", `"result"`, `"comment"`, "Single Issue", "English"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLooksEnglish(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"ascii", "The parser fails on empty input.", true},
		{"blank", "  ", true},
		{"few accents", "The café parser fails on naïve input values here.", true},
		{"cjk", "解析器在空输入时失败了，需要修复这个问题", false},
		{"mixed mostly cjk", "Bug: 解析器在空输入时失败了", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksEnglish(tt.text, 0.9); got != tt.want {
				t.Errorf("LooksEnglish(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
