package profile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrDefaultsUsed is wrapped by Load when the built-in registry was used instead of the file.
var ErrDefaultsUsed = errors.New("using built-in language profiles")

// Registry holds every known profile plus the global file analysis settings.
type Registry struct {
	profiles map[string]*Profile // keyed by lowercased name
	nonCode  map[string]bool
	rules    *testRules
	names    []string
}

// Settings is the on-disk shape of a profile file.
type Settings struct {
	NonCodeExtensions       []string  `yaml:"non_code_extensions"`
	UniversalTestExtensions []string  `yaml:"universal_test_extensions"`
	TestDirectories         []string  `yaml:"test_directories"`
	TestTokens              []string  `yaml:"test_tokens"`
	Languages               []Profile `yaml:"languages"`
}

// NewRegistry builds a registry from settings.
func NewRegistry(s Settings) (*Registry, error) {
	if len(s.Languages) == 0 {
		return nil, errors.New("no language profiles defined")
	}

	rules := &testRules{
		universalExt: lowerSet(s.UniversalTestExtensions),
		directories:  lowerSlice(s.TestDirectories),
		tokens:       lowerSlice(s.TestTokens),
	}
	r := &Registry{
		profiles: make(map[string]*Profile, len(s.Languages)),
		nonCode:  lowerSet(s.NonCodeExtensions),
		rules:    rules,
	}
	for i := range s.Languages {
		p := s.Languages[i]
		if p.Name == "" {
			return nil, fmt.Errorf("language profile %d has no name", i+1)
		}
		if len(p.SourceExtensions) == 0 {
			return nil, fmt.Errorf("language profile %q has no source extensions", p.Name)
		}
		if p.GitHubLanguage == "" {
			p.GitHubLanguage = p.Name
		}
		key := strings.ToLower(p.Name)
		if _, dup := r.profiles[key]; dup {
			return nil, fmt.Errorf("duplicate language profile %q", p.Name)
		}
		p.init(rules)
		r.profiles[key] = &p
		r.names = append(r.names, p.Name)
	}
	return r, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := NewRegistry(DefaultSettings())
	if err != nil {
		panic(fmt.Sprintf("built-in language profiles are invalid: %v", err))
	}
	return r
}

// Load reads profiles from a YAML file. The returned registry is never nil: when
// the file is missing or invalid the built-in registry is returned together with
// an error wrapping ErrDefaultsUsed that explains why.
func Load(filePath string) (*Registry, error) {
	if filePath == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filePath); err != nil {
		return Default(), fmt.Errorf("%w: %w", ErrDefaultsUsed, err)
	}

	var s Settings
	if err := cleanenv.ReadConfig(filePath, &s); err != nil {
		return Default(), fmt.Errorf("%w: reading %s: %w", ErrDefaultsUsed, filePath, err)
	}
	merged := merge(DefaultSettings(), s)
	r, err := NewRegistry(merged)
	if err != nil {
		return Default(), fmt.Errorf("%w: %s: %w", ErrDefaultsUsed, filePath, err)
	}
	return r, nil
}

// merge overlays file settings on the defaults; languages are replaced by name.
func merge(base, over Settings) Settings {
	if len(over.NonCodeExtensions) > 0 {
		base.NonCodeExtensions = over.NonCodeExtensions
	}
	if len(over.UniversalTestExtensions) > 0 {
		base.UniversalTestExtensions = over.UniversalTestExtensions
	}
	if len(over.TestDirectories) > 0 {
		base.TestDirectories = over.TestDirectories
	}
	if len(over.TestTokens) > 0 {
		base.TestTokens = over.TestTokens
	}
	for _, p := range over.Languages {
		idx := slices.IndexFunc(base.Languages, func(b Profile) bool {
			return strings.EqualFold(b.Name, p.Name)
		})
		if idx >= 0 {
			base.Languages[idx] = p
		} else {
			base.Languages = append(base.Languages, p)
		}
	}
	return base
}

// Lookup returns the profile named name (case-insensitive).
func (r *Registry) Lookup(name string) (*Profile, error) {
	p, ok := r.profiles[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown language %q (known: %s)", name, strings.Join(r.names, ", "))
	}
	return p, nil
}

// Names returns the profile names in definition order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// IsNonCode reports whether ext belongs to documentation, markup, images or similar.
func (r *Registry) IsNonCode(ext string) bool {
	return r.nonCode[strings.ToLower(ext)]
}

// IsUniversalTest reports whether ext marks a test artifact in any language.
func (r *Registry) IsUniversalTest(ext string) bool {
	return r.rules.universalExt[strings.ToLower(ext)]
}

// IsForeign reports whether ext is a source extension of another profile but not of active.
func (r *Registry) IsForeign(ext string, active *Profile) bool {
	if active.HasSource(ext) {
		return false
	}
	for _, p := range r.profiles {
		if p.HasSource(ext) {
			return true
		}
	}
	return false
}

func lowerSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[strings.ToLower(it)] = true
	}
	return m
}

func lowerSlice(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = strings.ToLower(it)
	}
	return out
}
