// Package issuelink resolves the issue a pull request closes from its description.
package issuelink

import (
	"regexp"
	"strconv"
)

var (
	// closingRef matches a closing keyword, an optional owner/name qualifier, and #<digits>.
	closingRef = regexp.MustCompile(`(?i)(?:close|closes|closed|fix|fixes|fixed|resolve|resolves|resolved)\s+(?:[a-zA-Z0-9-]+/[a-zA-Z0-9-]+\s*)?#(\d+)`)
	anyRef     = regexp.MustCompile(`#(\d+)`)
)

// ExtractIssueNumber returns the single issue referenced by body.
//
// Closing-keyword references win; bare #N references are only consulted when no
// closing reference exists. Zero or several distinct numbers yield false.
func ExtractIssueNumber(body string) (int, bool) {
	matches := closingRef.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		matches = anyRef.FindAllStringSubmatch(body, -1)
	}

	seen := make(map[int]struct{})
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		seen[n] = struct{}{}
	}
	if len(seen) != 1 {
		return 0, false
	}
	for n := range seen {
		return n, true
	}
	return 0, false
}
