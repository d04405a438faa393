package validator

import (
	"docfields/internal/domain"
)

// FieldStatus is the computed review state of a single field.
type FieldStatus struct {
	Status   domain.FieldValidationStatus `json:"status"`
	Messages []string                     `json:"messages"`
}

// ComputeFieldStatuses derives per-field statuses from rule results and
// field confidences. A failed error rule makes a field invalid, a failed
// warning rule or a confidence at or below threshold makes it unsure.
func ComputeFieldStatuses(results []Entry, fields []domain.ExtractedField, threshold float64) map[string]*FieldStatus {
	statuses := make(map[string]*FieldStatus, len(fields))
	for i := range fields {
		fs := &FieldStatus{Status: domain.FieldStatusValid, Messages: []string{}}
		if fields[i].Confidence <= threshold {
			fs.Status = domain.FieldStatusUnsure
			fs.Messages = append(fs.Messages, "confidence at or below review threshold")
		}
		statuses[fields[i].Name] = fs
	}

	for _, r := range results {
		if r.Passed {
			continue
		}
		fs, ok := statuses[r.Field]
		if !ok {
			// Rule names a field the run did not produce.
			fs = &FieldStatus{Status: domain.FieldStatusValid, Messages: []string{}}
			statuses[r.Field] = fs
		}
		if r.Severity == domain.ValidationSeverityError {
			fs.Status = domain.FieldStatusInvalid
		} else if fs.Status != domain.FieldStatusInvalid {
			fs.Status = domain.FieldStatusUnsure
		}
		fs.Messages = append(fs.Messages, r.Message)
	}
	return statuses
}
