package validator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
)

// Entry is a stored rule result.
type Entry struct {
	Kind          fieldspec.RuleKind        `json:"kind"`
	RuleName      string                    `json:"rule_name"`
	Severity      domain.ValidationSeverity `json:"severity"`
	Passed        bool                      `json:"passed"`
	Field         string                    `json:"field"`
	ExpectedValue string                    `json:"expected_value"`
	ActualValue   string                    `json:"actual_value"`
	Message       string                    `json:"message"`
	ValidatedAt   time.Time                 `json:"validated_at"`
}

// Summary holds aggregate counts of rule results.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Report is the validation outcome of one extraction result.
type Report struct {
	Status        domain.ValidationStatus `json:"validation_status"`
	Summary       Summary                 `json:"summary"`
	Results       []Entry                 `json:"results"`
	FieldStatuses map[string]*FieldStatus `json:"field_statuses"`
}

// Engine orchestrates rule validation.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
}

// NewEngine creates a new validation engine.
func NewEngine(registry *Registry, log *zap.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{registry: registry, logger: logger.OrNop(log)}
}

// Validate runs rules against res. A rule that cannot be built is an error:
// profiles are validated when loaded, so it indicates a caller bug.
func (e *Engine) Validate(ctx context.Context, res *domain.StructuredResult, rules []fieldspec.RuleSpec) (*Report, error) {
	now := time.Now().UTC()
	entries := make([]Entry, 0)
	hasError, hasWarning := false, false

	for i := range rules {
		v, err := e.registry.Build(rules[i])
		if err != nil {
			return nil, fmt.Errorf("building rule %d: %w", i, err)
		}
		for _, r := range v.Validate(ctx, res) {
			entries = append(entries, Entry{
				Kind:          v.RuleKind(),
				RuleName:      v.RuleName(),
				Severity:      v.Severity(),
				Passed:        r.Passed,
				Field:         r.Field,
				ExpectedValue: r.ExpectedValue,
				ActualValue:   r.ActualValue,
				Message:       r.Message,
				ValidatedAt:   now,
			})
			if !r.Passed {
				if v.Severity() == domain.ValidationSeverityError {
					hasError = true
				} else {
					hasWarning = true
				}
			}
		}
	}

	var status domain.ValidationStatus
	switch {
	case hasError:
		status = domain.ValidationStatusInvalid
	case hasWarning:
		status = domain.ValidationStatusWarning
	default:
		status = domain.ValidationStatusValid
	}

	report := &Report{
		Status:        status,
		Summary:       summarize(entries),
		Results:       entries,
		FieldStatuses: ComputeFieldStatuses(entries, res.ExtractedFields, res.Threshold),
	}
	e.logger.Debug("result validated",
		zap.String("filename", res.Filename),
		zap.String("status", string(status)),
		zap.Int("results", len(entries)))
	return report, nil
}

func summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, r := range entries {
		switch {
		case r.Passed:
			s.Passed++
		case r.Severity == domain.ValidationSeverityError:
			s.Errors++
		default:
			s.Warnings++
		}
	}
	return s
}
