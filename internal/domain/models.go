package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultConfidenceThreshold is the review cut-off used when none is configured.
const DefaultConfidenceThreshold = 80.0

// BBox is a word or span bounding box as [x0, y0, x1, y1] in image pixels.
type BBox [4]int

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		min(b[0], o[0]),
		min(b[1], o[1]),
		max(b[2], o[2]),
		max(b[3], o[3]),
	}
}

// ExtractedField is the final, scored value of one field in a run.
type ExtractedField struct {
	Name       string  `json:"name"`
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"`
	BBox       *BBox   `json:"bbox"`

	// Failure is set when the field could not be evaluated (malformed spec,
	// regex timeout). It is internal and never serialised.
	Failure string `json:"-"`
	// Candidates holds the ranked alternatives that lost to Value.
	Candidates []Candidate `json:"-"`
}

// Candidate is a located occurrence of a field value within the raw text.
type Candidate struct {
	FieldName string
	Value     string
	// Start and End are a half-open byte range into the raw text.
	Start    int
	End      int
	BBox     *BBox
	RawScore float64
}

// StructuredResult is the per-document output of an extraction run.
type StructuredResult struct {
	Filename            string           `json:"filename"`
	RawText             string           `json:"raw_text"`
	ExtractedFields     []ExtractedField `json:"extracted_fields"`
	LowConfidenceFields []ExtractedField `json:"low_confidence_fields"`
	OverallConfidence   float64          `json:"overall_confidence"`

	// Threshold is the cut-off the review list was computed with.
	Threshold float64 `json:"-"`
}

// ExtractionRecord is a persisted StructuredResult plus its review state.
type ExtractionRecord struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Filename          string          `db:"filename" json:"filename"`
	Profile           string          `db:"profile" json:"profile"`
	RawText           string          `db:"raw_text" json:"-"`
	Fields            json.RawMessage `db:"fields" json:"-"`
	Failures          json.RawMessage `db:"failures" json:"-"`
	Validation        json.RawMessage `db:"validation" json:"validation,omitempty"`
	Threshold         float64         `db:"threshold" json:"threshold"`
	OverallConfidence float64         `db:"overall_confidence" json:"overall_confidence"`
	LowConfidence     int             `db:"low_confidence_count" json:"low_confidence_count"`
	Corrected         bool            `db:"corrected" json:"corrected"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
