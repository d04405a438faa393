package domain

import (
	"fmt"
	"math"
)

// RecomputeOverall returns the arithmetic mean of the field confidences.
// An empty list scores 0. Rounding is left to presentation.
func RecomputeOverall(fields []ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	var sum float64
	for i := range fields {
		sum += ClampConfidence(fields[i].Confidence)
	}
	return sum / float64(len(fields))
}

// PartitionLowConfidence returns the fields whose confidence is at or below
// threshold, in their original order.
func PartitionLowConfidence(fields []ExtractedField, threshold float64) []ExtractedField {
	low := make([]ExtractedField, 0)
	for i := range fields {
		if fields[i].Confidence <= threshold {
			low = append(low, fields[i])
		}
	}
	return low
}

// ClampConfidence bounds c to [0, 100].
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}

// Recompute refreshes the review list and overall confidence from the
// current field list. It must run after every change to ExtractedFields.
func (r *StructuredResult) Recompute(threshold float64) {
	r.Threshold = threshold
	r.LowConfidenceFields = PartitionLowConfidence(r.ExtractedFields, threshold)
	r.OverallConfidence = RecomputeOverall(r.ExtractedFields)
}

// Field returns a pointer to the named field, or nil.
func (r *StructuredResult) Field(name string) *ExtractedField {
	for i := range r.ExtractedFields {
		if r.ExtractedFields[i].Name == name {
			return &r.ExtractedFields[i]
		}
	}
	return nil
}

// ApplyCorrections replaces field values with human-verified ones. Corrected
// fields get confidence 100 and lose any failure marker. The review list
// and overall confidence are recomputed before returning.
func (r *StructuredResult) ApplyCorrections(corrections map[string]string) error {
	for name := range corrections {
		if r.Field(name) == nil {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	for name, value := range corrections {
		f := r.Field(name)
		v := value
		f.Value = &v
		f.Confidence = 100
		f.Failure = ""
		f.Candidates = nil
	}
	r.Recompute(r.Threshold)
	return nil
}
