package fieldspec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    fieldspec.Spec
		wantErr bool
	}{
		{"keyword ok", fieldspec.Spec{Name: "Total", Mode: fieldspec.ModeKeyword, Keywords: []string{"total"}}, false},
		{"keyword without keywords", fieldspec.Spec{Name: "Total", Mode: fieldspec.ModeKeyword, Keywords: []string{" "}}, true},
		{"regex ok", fieldspec.Spec{Name: "Id", Mode: fieldspec.ModeRegex, Pattern: `INV-(\d+)`}, false},
		{"regex via patterns", fieldspec.Spec{Name: "Id", Mode: fieldspec.ModeRegex, Patterns: []string{`\d+`}}, false},
		{"regex bad pattern", fieldspec.Spec{Name: "Id", Mode: fieldspec.ModeRegex, Pattern: `(unclosed`}, true},
		{"entity ok", fieldspec.Spec{Name: "Date", Mode: fieldspec.ModeEntity, EntityType: "DATE"}, false},
		{"entity without type", fieldspec.Spec{Name: "Date", Mode: fieldspec.ModeEntity}, true},
		{"unknown mode", fieldspec.Spec{Name: "X", Mode: "semantic"}, true},
		{"missing name", fieldspec.Spec{Mode: fieldspec.ModeKeyword, Keywords: []string{"a"}}, true},
		{"unknown post process", fieldspec.Spec{Name: "X", Mode: fieldspec.ModeKeyword, Keywords: []string{"a"}, PostProcess: "upper"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrMalformedFieldSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpec_AllPatterns(t *testing.T) {
	s := fieldspec.Spec{Pattern: "a", Patterns: []string{"", "b"}}
	assert.Equal(t, []string{"a", "b"}, s.AllPatterns())
}

func TestValidateAll(t *testing.T) {
	errs := fieldspec.ValidateAll([]fieldspec.Spec{
		{Name: "ok", Mode: fieldspec.ModeKeyword, Keywords: []string{"ok"}},
		{Name: "bad", Mode: fieldspec.ModeRegex, Pattern: "[z-a]"},
	})

	assert.Len(t, errs, 1)
	assert.ErrorIs(t, errs["bad"], domain.ErrMalformedFieldSpec)
}

func TestDedupe_FirstWins(t *testing.T) {
	kept, dropped := fieldspec.Dedupe([]fieldspec.Spec{
		{Name: "A", Keywords: []string{"first"}},
		{Name: "B"},
		{Name: "A", Keywords: []string{"second"}},
	})

	assert.Len(t, kept, 2)
	assert.Equal(t, []string{"first"}, kept[0].Keywords)
	assert.Equal(t, []string{"A"}, dropped)
}

func TestPostProcess_Apply(t *testing.T) {
	tests := []struct {
		pp   fieldspec.PostProcess
		in   string
		want string
	}{
		{fieldspec.PostAmountNormalize, "$1,450.00", "1450.00"},
		{fieldspec.PostAmountNormalize, "￥3,000", "3000"},
		{fieldspec.PostAmountNormalize, "n/a", "n/a"},
		{fieldspec.PostDateNormalize, "2024/1/5", "2024-01-05"},
		{fieldspec.PostDateNormalize, "2023年5月8日", "2023-05-08"},
		{fieldspec.PostDateNormalize, "2024.12.31", "2024-12-31"},
		{fieldspec.PostDateNormalize, "Jan 2, 2024", "2024-01-02"},
		{fieldspec.PostDateNormalize, "15 March 2024", "2024-03-15"},
		{fieldspec.PostDateNormalize, "03/04/2024", "03/04/2024"},
		{fieldspec.PostDateNormalize, "2024-02-30", "2024-02-30"},
		{fieldspec.PostTrim, "  padded ", "padded"},
		{fieldspec.PostNone, " as is ", " as is "},
	}

	for _, tt := range tests {
		t.Run(string(tt.pp)+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pp.Apply(tt.in))
		})
	}
}
