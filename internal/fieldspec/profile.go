package fieldspec

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"docfields/internal/domain"
)

// DefaultProfile is the name of the built-in general-purpose profile.
const DefaultProfile = "default"

// RuleKind names a business rule.
type RuleKind string

const (
	RuleRequiredFields RuleKind = "required_fields"
	RuleAmountLimit    RuleKind = "amount_limit"
	RuleDateNotFuture  RuleKind = "date_not_future"
)

// RuleSpec configures one business rule of a profile.
type RuleSpec struct {
	Kind     RuleKind                  `yaml:"kind" json:"kind"`
	Fields   []string                  `yaml:"fields,omitempty" json:"fields,omitempty"`
	Field    string                    `yaml:"field,omitempty" json:"field,omitempty"`
	Max      float64                   `yaml:"max,omitempty" json:"max,omitempty"`
	Severity domain.ValidationSeverity `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// Profile is a named business scenario: fields, rules and an optional
// threshold override.
type Profile struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Threshold   *float64   `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Fields      []Spec     `yaml:"fields" json:"fields"`
	Rules       []RuleSpec `yaml:"rules,omitempty" json:"rules,omitempty"`
}

//go:embed profile.schema.json
var schemaJSON []byte

//go:embed profiles/*.yaml
var builtinFS embed.FS

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func profileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("profile.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("profile.schema.json")
	})
	return schema, schemaErr
}

// ParseProfile decodes a YAML or JSON profile, checks it against the profile
// schema and validates every field. Errors wrap domain.ErrMalformedFieldSpec.
func ParseProfile(data []byte) (*Profile, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", domain.ErrMalformedFieldSpec, err)
	}
	// Round-trip through JSON so the schema sees plain JSON values.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: profile is not JSON-compatible: %v", domain.ErrMalformedFieldSpec, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFieldSpec, err)
	}

	s, err := profileSchema()
	if err != nil {
		return nil, fmt.Errorf("fieldspec.ParseProfile: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: profile does not match schema: %v", domain.ErrMalformedFieldSpec, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFieldSpec, err)
	}
	for i := range p.Fields {
		if err := p.Fields[i].Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	return &p, nil
}

// LoadProfileFile reads and parses a profile file.
func LoadProfileFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fieldspec.LoadProfileFile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Catalog holds the profiles available to a process. It is read-only after
// construction.
type Catalog struct {
	profiles map[string]*Profile
}

// NewCatalog loads the built-in profiles and then every *.yaml, *.yml and
// *.json file in dir (if dir is non-empty). Files override built-ins of the
// same name.
func NewCatalog(dir string) (*Catalog, error) {
	c := &Catalog{profiles: map[string]*Profile{}}

	entries, err := builtinFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("fieldspec.NewCatalog: %w", err)
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("profiles/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("fieldspec.NewCatalog: %w", err)
		}
		p, err := ParseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", e.Name(), err)
		}
		c.profiles[p.Name] = p
	}

	if dir == "" {
		return c, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("fieldspec.NewCatalog: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		p, err := LoadProfileFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		c.profiles[p.Name] = p
	}
	return c, nil
}

// Get returns the named profile.
func (c *Catalog) Get(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
	}
	return p, nil
}

// List returns all profiles sorted by name.
func (c *Catalog) List() []*Profile {
	out := make([]*Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
