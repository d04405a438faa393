package validator

import (
	"fmt"
	"sort"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

// Factory builds a Validator from its profile configuration.
type Factory func(spec fieldspec.RuleSpec) (Validator, error)

// Registry maps rule kinds to Validator factories.
type Registry struct {
	factories map[fieldspec.RuleKind]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[fieldspec.RuleKind]Factory)}
}

// DefaultRegistry returns a Registry with every built-in rule kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(fieldspec.RuleRequiredFields, newRequiredFields)
	r.Register(fieldspec.RuleAmountLimit, newAmountLimit)
	r.Register(fieldspec.RuleDateNotFuture, newDateNotFuture)
	return r
}

// Register adds a factory for kind, replacing any previous one.
func (r *Registry) Register(kind fieldspec.RuleKind, f Factory) {
	r.factories[kind] = f
}

// Build returns the configured Validator for spec.
func (r *Registry) Build(spec fieldspec.RuleSpec) (Validator, error) {
	f, ok := r.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rule kind %q", domain.ErrMalformedFieldSpec, spec.Kind)
	}
	return f(spec)
}

// Kinds returns the registered rule kinds, sorted.
func (r *Registry) Kinds() []fieldspec.RuleKind {
	out := make([]fieldspec.RuleKind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
