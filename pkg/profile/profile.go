// Package profile defines per-language file analysis rules.
package profile

import (
	"path"
	"strings"
)

// Profile is the file analysis configuration for one language.
type Profile struct {
	Name             string   `yaml:"name"`
	GitHubLanguage   string   `yaml:"github_language"` // as reported by the repository languages API
	SourceExtensions []string `yaml:"source_extensions"`
	DependencyFiles  []string `yaml:"dependency_files"`
	TestSuffixes     []string `yaml:"test_suffixes"` // matched against the lowercased base name
	TestPrefixes     []string `yaml:"test_prefixes"`

	source  map[string]bool
	deps    map[string]bool
	general *testRules
}

// testRules are the test-detection rules shared by every profile.
type testRules struct {
	universalExt map[string]bool
	directories  []string
	tokens       []string
}

func (p *Profile) init(rules *testRules) {
	p.source = make(map[string]bool, len(p.SourceExtensions))
	for _, ext := range p.SourceExtensions {
		p.source[strings.ToLower(ext)] = true
	}
	p.deps = make(map[string]bool, len(p.DependencyFiles))
	for _, name := range p.DependencyFiles {
		p.deps[name] = true
	}
	p.general = rules
}

// HasSource reports whether ext (with leading dot) is a source extension of p.
func (p *Profile) HasSource(ext string) bool {
	return p.source[strings.ToLower(ext)]
}

// IsDependencyFile reports whether the base name of filePath is a build or dependency file.
func (p *Profile) IsDependencyFile(filePath string) bool {
	return p.deps[path.Base(normalize(filePath))]
}

// IsTestFile reports whether filePath looks like a test for this language.
func (p *Profile) IsTestFile(filePath string) bool {
	norm := strings.ToLower(normalize(filePath))
	base := path.Base(norm)

	if p.general.universalExt[path.Ext(base)] {
		return true
	}

	segments := strings.Split(path.Dir(norm), "/")
	for _, seg := range segments {
		for _, dir := range p.general.directories {
			if seg == dir {
				return true
			}
		}
	}

	for _, tok := range p.general.tokens {
		if strings.Contains(base, tok) {
			return true
		}
	}
	for _, s := range p.TestSuffixes {
		if strings.HasSuffix(base, strings.ToLower(s)) {
			return true
		}
	}
	for _, s := range p.TestPrefixes {
		if strings.HasPrefix(base, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Ext returns the lowercased extension of filePath, dot included.
func Ext(filePath string) string {
	return strings.ToLower(path.Ext(path.Base(normalize(filePath))))
}

func normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
