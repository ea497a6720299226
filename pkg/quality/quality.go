// Package quality decides whether a linked issue is clear and actionable.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/repo-evaluator/pkg/profile"
	"github.com/codeGROOVE-dev/repo-evaluator/pkg/types"
)

// MinBodyLength is the shortest trimmed issue body worth sending to the model.
const MinBodyLength = 50

// Model completes a single prompt, returning the raw response text.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier rates issues with one model call each.
type Classifier struct {
	model Model
}

// New returns a Classifier backed by model.
func New(model Model) *Classifier {
	return &Classifier{model: model}
}

const promptTemplate = `You are a senior software engineer evaluating a GitHub issue from a %s repository to determine if it is suitable for a "Good PR".

A "Good PR" is linked to an issue that meets these criteria:
1. Clear and Actionable: It describes a specific, actionable problem or feature, providing enough context for a developer to start working.
2. Not a Revert: The issue must not be a request to simply revert previous changes or roll back to an older version.
3. Not a Question or Vague Request: It must not be a simple user question, a vague request for help, or a request for documentation.
4. Single Issue: It describes one well-defined problem or feature, not a collection of unrelated requests.
5. English: The issue is written primarily in English.

Analyze the following issue and determine if it represents a "Good PR" or a "Bad PR" based on these criteria.

---
%s
---

Respond with a JSON object containing two keys:
1. "result": A string, either "Good PR" or "Bad PR".
2. "comment": A brief explanation for your decision.
`

// Prompt renders the classification prompt for an issue body.
func Prompt(body string, p *profile.Profile) string {
	lang := "software"
	if p != nil {
		lang = p.Name
	}
	return fmt.Sprintf(promptTemplate, lang, body)
}

// Classify returns the verdict for an issue body. It never fails: short bodies,
// model errors and malformed responses all produce a Bad verdict whose comment
// says why.
func (c *Classifier) Classify(ctx context.Context, body string, p *profile.Profile) types.QualityVerdict {
	if utf8.RuneCountInString(strings.TrimSpace(body)) < MinBodyLength {
		return types.QualityVerdict{Verdict: types.VerdictBad, Comment: "Issue body is too short."}
	}

	raw, err := c.model.Complete(ctx, Prompt(body, p))
	if err != nil {
		slog.Warn("Quality model call failed", "component", "quality", "error", err)
		return types.QualityVerdict{Verdict: types.VerdictBad, Comment: fmt.Sprintf("LLM analysis failed: %v", err)}
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		slog.Warn("Unusable quality model response", "component", "quality", "error", err)
		return types.QualityVerdict{Verdict: types.VerdictBad, Comment: fmt.Sprintf("LLM analysis failed: %v", err)}
	}
	return v
}

// ParseVerdict decodes a model response of the form {"result": ..., "comment": ...}.
// Code fences around the JSON are tolerated.
func ParseVerdict(raw string) (types.QualityVerdict, error) {
	var resp struct {
		Result  *string `json:"result"`
		Comment *string `json:"comment"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return types.QualityVerdict{}, fmt.Errorf("decoding model response: %w", err)
	}
	if resp.Result == nil {
		return types.QualityVerdict{}, fmt.Errorf("model response missing %q", "result")
	}

	v := types.QualityVerdict{Comment: "LLM response missing comment."}
	if resp.Comment != nil {
		v.Comment = *resp.Comment
	}

	switch strings.ToLower(strings.TrimSpace(*resp.Result)) {
	case "good pr", "good":
		v.Verdict = types.VerdictGood
	case "bad pr", "bad":
		v.Verdict = types.VerdictBad
	default:
		return types.QualityVerdict{}, fmt.Errorf("unrecognized verdict %q", *resp.Result)
	}
	return v, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// LooksEnglish reports whether at least threshold of the characters in text are ASCII.
// Blank text passes.
func LooksEnglish(text string, threshold float64) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	total := utf8.RuneCountInString(text)
	ascii := 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			ascii++
		}
	}
	return float64(ascii)/float64(total) >= threshold
}
