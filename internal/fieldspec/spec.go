// Package fieldspec defines field specifications and the named profiles
// that bundle them.
package fieldspec

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"docfields/internal/domain"
)

// MatchMode selects how a field is located in the text.
type MatchMode string

const (
	ModeKeyword MatchMode = "keyword"
	ModeRegex   MatchMode = "regex"
	ModeEntity  MatchMode = "entity"
)

// PostProcess names a normalisation applied to the winning value.
type PostProcess string

const (
	PostNone            PostProcess = ""
	PostAmountNormalize PostProcess = "amount_normalize"
	PostDateNormalize   PostProcess = "date_normalize"
	PostTrim            PostProcess = "trim"
)

// Spec describes one field to extract. Mode decides which of Keywords,
// Patterns and EntityType drive the match; the others act as fallbacks.
type Spec struct {
	Name        string      `yaml:"name" json:"name"`
	Mode        MatchMode   `yaml:"match_mode" json:"match_mode"`
	Keywords    []string    `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Pattern     string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Patterns    []string    `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	EntityType  string      `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	PostProcess PostProcess `yaml:"post_process,omitempty" json:"post_process,omitempty"`
}

// AllPatterns returns Pattern followed by Patterns, skipping blanks.
func (s *Spec) AllPatterns() []string {
	var out []string
	if strings.TrimSpace(s.Pattern) != "" {
		out = append(out, s.Pattern)
	}
	for _, p := range s.Patterns {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasKeywords reports whether any non-blank keyword is configured.
func (s *Spec) HasKeywords() bool {
	for _, k := range s.Keywords {
		if strings.TrimSpace(k) != "" {
			return true
		}
	}
	return false
}

// Validate checks that the spec is usable for its mode and that every
// pattern compiles. Errors wrap domain.ErrMalformedFieldSpec.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: field name is required", domain.ErrMalformedFieldSpec)
	}
	switch s.Mode {
	case ModeKeyword:
		if !s.HasKeywords() {
			return fmt.Errorf("%w: %s: keyword mode needs at least one keyword", domain.ErrMalformedFieldSpec, s.Name)
		}
	case ModeRegex:
		if len(s.AllPatterns()) == 0 {
			return fmt.Errorf("%w: %s: regex mode needs a pattern", domain.ErrMalformedFieldSpec, s.Name)
		}
	case ModeEntity:
		if strings.TrimSpace(s.EntityType) == "" {
			return fmt.Errorf("%w: %s: entity mode needs an entity_type", domain.ErrMalformedFieldSpec, s.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown match_mode %q", domain.ErrMalformedFieldSpec, s.Name, s.Mode)
	}
	switch s.PostProcess {
	case PostNone, PostAmountNormalize, PostDateNormalize, PostTrim:
	default:
		return fmt.Errorf("%w: %s: unknown post_process %q", domain.ErrMalformedFieldSpec, s.Name, s.PostProcess)
	}
	for _, p := range s.AllPatterns() {
		if _, err := Compile(p, 0); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrMalformedFieldSpec, s.Name, err)
		}
	}
	return nil
}

// Compile compiles a field pattern with a match timeout. A non-positive
// timeout leaves matching unbounded and is meant for validation only.
func Compile(pattern string, timeout time.Duration) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return re, nil
}

// ValidateAll returns the first validation error per field, keyed by name.
func ValidateAll(specs []Spec) map[string]error {
	errs := map[string]error{}
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			if _, seen := errs[specs[i].Name]; !seen {
				errs[specs[i].Name] = err
			}
		}
	}
	return errs
}

// Dedupe keeps the first spec for each name and reports the dropped names.
func Dedupe(specs []Spec) (kept []Spec, dropped []string) {
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		if seen[specs[i].Name] {
			dropped = append(dropped, specs[i].Name)
			continue
		}
		seen[specs[i].Name] = true
		kept = append(kept, specs[i])
	}
	return kept, dropped
}
