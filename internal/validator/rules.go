package validator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

func severityOr(s, def domain.ValidationSeverity) domain.ValidationSeverity {
	if s == "" {
		return def
	}
	return s
}

func valueOf(res *domain.StructuredResult, name string) (string, bool) {
	f := res.Field(name)
	if f == nil || f.Value == nil {
		return "", false
	}
	v := strings.TrimSpace(*f.Value)
	return v, v != ""
}

func fieldMessage(passed bool, ruleName, field string) string {
	if passed {
		return fmt.Sprintf("%s: %s passed", ruleName, field)
	}
	return fmt.Sprintf("%s: %s failed", ruleName, field)
}

// requiredFields checks that every listed field has a non-empty value.
type requiredFields struct {
	fields   []string
	severity domain.ValidationSeverity
}

func newRequiredFields(spec fieldspec.RuleSpec) (Validator, error) {
	if len(spec.Fields) == 0 {
		return nil, fmt.Errorf("%w: required_fields needs fields", domain.ErrMalformedFieldSpec)
	}
	return &requiredFields{
		fields:   spec.Fields,
		severity: severityOr(spec.Severity, domain.ValidationSeverityError),
	}, nil
}

func (v *requiredFields) RuleKind() fieldspec.RuleKind         { return fieldspec.RuleRequiredFields }
func (v *requiredFields) RuleName() string                     { return "Required field" }
func (v *requiredFields) Severity() domain.ValidationSeverity { return v.severity }

func (v *requiredFields) Validate(_ context.Context, res *domain.StructuredResult) []Result {
	results := make([]Result, 0, len(v.fields))
	for _, name := range v.fields {
		val, ok := valueOf(res, name)
		results = append(results, Result{
			Passed:        ok,
			Field:         name,
			ExpectedValue: "non-empty value",
			ActualValue:   val,
			Message:       fieldMessage(ok, v.RuleName(), name),
		})
	}
	return results
}

// amountLimit checks that a numeric field does not exceed a maximum.
// A missing value is left to required_fields.
type amountLimit struct {
	field    string
	max      float64
	severity domain.ValidationSeverity
}

func newAmountLimit(spec fieldspec.RuleSpec) (Validator, error) {
	if spec.Field == "" || spec.Max <= 0 {
		return nil, fmt.Errorf("%w: amount_limit needs field and a positive max", domain.ErrMalformedFieldSpec)
	}
	return &amountLimit{
		field:    spec.Field,
		max:      spec.Max,
		severity: severityOr(spec.Severity, domain.ValidationSeverityError),
	}, nil
}

func (v *amountLimit) RuleKind() fieldspec.RuleKind         { return fieldspec.RuleAmountLimit }
func (v *amountLimit) RuleName() string                     { return "Amount limit" }
func (v *amountLimit) Severity() domain.ValidationSeverity { return v.severity }

func (v *amountLimit) Validate(_ context.Context, res *domain.StructuredResult) []Result {
	raw, ok := valueOf(res, v.field)
	if !ok {
		return nil
	}
	expected := fmt.Sprintf("<= %s", strconv.FormatFloat(v.max, 'f', 2, 64))
	amount, err := strconv.ParseFloat(fieldspec.PostAmountNormalize.Apply(raw), 64)
	if err != nil {
		return []Result{{
			Field:         v.field,
			ExpectedValue: expected,
			ActualValue:   raw,
			Message:       fmt.Sprintf("%s: %s is not a number", v.RuleName(), v.field),
		}}
	}
	passed := amount <= v.max
	msg := fieldMessage(passed, v.RuleName(), v.field)
	if !passed {
		msg = fmt.Sprintf("%s: %s %.2f exceeds %.2f", v.RuleName(), v.field, amount, v.max)
	}
	return []Result{{
		Passed:        passed,
		Field:         v.field,
		ExpectedValue: expected,
		ActualValue:   raw,
		Message:       msg,
	}}
}

// dateNotFuture flags dates later than today.
type dateNotFuture struct {
	field    string
	severity domain.ValidationSeverity
}

func newDateNotFuture(spec fieldspec.RuleSpec) (Validator, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("%w: date_not_future needs field", domain.ErrMalformedFieldSpec)
	}
	return &dateNotFuture{
		field:    spec.Field,
		severity: severityOr(spec.Severity, domain.ValidationSeverityWarning),
	}, nil
}

func (v *dateNotFuture) RuleKind() fieldspec.RuleKind         { return fieldspec.RuleDateNotFuture }
func (v *dateNotFuture) RuleName() string                     { return "Date not in future" }
func (v *dateNotFuture) Severity() domain.ValidationSeverity { return v.severity }

func (v *dateNotFuture) Validate(_ context.Context, res *domain.StructuredResult) []Result {
	raw, ok := valueOf(res, v.field)
	if !ok {
		return nil
	}
	today := time.Now().Format(time.DateOnly)
	d, err := time.Parse(time.DateOnly, fieldspec.PostDateNormalize.Apply(raw))
	if err != nil {
		return []Result{{
			Field:         v.field,
			ExpectedValue: "date on or before " + today,
			ActualValue:   raw,
			Message:       fmt.Sprintf("%s: %s is not a recognised date", v.RuleName(), v.field),
		}}
	}
	passed := d.Format(time.DateOnly) <= today
	return []Result{{
		Passed:        passed,
		Field:         v.field,
		ExpectedValue: "date on or before " + today,
		ActualValue:   raw,
		Message:       fieldMessage(passed, v.RuleName(), v.field),
	}}
}
