// Package validator runs profile business rules over an extraction result.
package validator

import (
	"context"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

// Validator is a single configured business rule.
type Validator interface {
	Validate(ctx context.Context, res *domain.StructuredResult) []Result
	RuleKind() fieldspec.RuleKind
	RuleName() string
	Severity() domain.ValidationSeverity
}

// Result is the outcome of one rule against one field.
type Result struct {
	Passed        bool
	Field         string
	ExpectedValue string
	ActualValue   string
	Message       string
}
