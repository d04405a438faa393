package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docfields/internal/domain"
)

func strPtr(s string) *string { return &s }

func sample() *domain.StructuredResult {
	r := &domain.StructuredResult{
		Filename: "inv.txt",
		ExtractedFields: []domain.ExtractedField{
			{Name: "Invoice Number", Value: strPtr("INV-1"), Confidence: 98},
			{Name: "Total", Value: strPtr("450.00"), Confidence: 72},
			{Name: "Due Date", Confidence: 0, Failure: "regex evaluation timed out"},
		},
	}
	r.Recompute(80)
	return r
}

func TestRecomputeOverall(t *testing.T) {
	assert.Equal(t, 0.0, domain.RecomputeOverall(nil))
	assert.Equal(t, 170.0/3, domain.RecomputeOverall(sample().ExtractedFields))
	assert.Equal(t, 50.0, domain.RecomputeOverall([]domain.ExtractedField{
		{Confidence: 150}, {Confidence: -10},
	}))
}

func TestRecomputeOverall_NotRounded(t *testing.T) {
	got := domain.RecomputeOverall([]domain.ExtractedField{
		{Confidence: 100}, {Confidence: 100}, {Confidence: 0},
	})
	assert.InDelta(t, 66.6666666, got, 1e-6)
	assert.NotEqual(t, 66.67, got)
}

func TestPartitionLowConfidence(t *testing.T) {
	r := sample()
	require.Len(t, r.LowConfidenceFields, 2)
	assert.Equal(t, "Total", r.LowConfidenceFields[0].Name)
	assert.Equal(t, "Due Date", r.LowConfidenceFields[1].Name)

	assert.Len(t, domain.PartitionLowConfidence(r.ExtractedFields, 98), 3)
	assert.Len(t, domain.PartitionLowConfidence(r.ExtractedFields, 97.9), 2)
	assert.NotNil(t, domain.PartitionLowConfidence(nil, 80))
}

func TestRecompute_Idempotent(t *testing.T) {
	r := sample()
	first := r.LowConfidenceFields
	r.Recompute(80)
	assert.Equal(t, first, r.LowConfidenceFields)
	assert.Equal(t, 80.0, r.Threshold)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, domain.ClampConfidence(math.NaN()))
	assert.Equal(t, 0.0, domain.ClampConfidence(-1))
	assert.Equal(t, 100.0, domain.ClampConfidence(101))
	assert.Equal(t, 42.5, domain.ClampConfidence(42.5))
}

func TestApplyCorrections(t *testing.T) {
	r := sample()
	err := r.ApplyCorrections(map[string]string{"Total": "455.00", "Due Date": "2024-04-01"})
	require.NoError(t, err)

	total := r.Field("Total")
	assert.Equal(t, "455.00", *total.Value)
	assert.Equal(t, 100.0, total.Confidence)
	due := r.Field("Due Date")
	assert.Empty(t, due.Failure)
	assert.Empty(t, r.LowConfidenceFields)
	assert.InDelta(t, 298.0/3, r.OverallConfidence, 1e-9)
}

func TestApplyCorrections_UnknownFieldChangesNothing(t *testing.T) {
	r := sample()
	err := r.ApplyCorrections(map[string]string{"Total": "1", "Vendor": "Acme"})
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	assert.Equal(t, "450.00", *r.Field("Total").Value)
	assert.InDelta(t, 170.0/3, r.OverallConfidence, 1e-9)
}

func TestBBoxUnion(t *testing.T) {
	a := domain.BBox{10, 20, 30, 40}
	b := domain.BBox{5, 25, 35, 38}
	assert.Equal(t, domain.BBox{5, 20, 35, 40}, a.Union(b))
}
