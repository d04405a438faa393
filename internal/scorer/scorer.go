// Package scorer combines match quality with OCR word confidence.
package scorer

import (
	"math"

	"docfields/internal/document"
	"docfields/internal/domain"
)

// Default weights of the combined score.
const (
	DefaultMatchWeight = 0.6
	DefaultOCRWeight   = 0.4
)

// Scorer turns a candidate into a final 0..100 confidence.
type Scorer struct {
	matchWeight float64
	ocrWeight   float64
}

// New returns a Scorer with the default weights.
func New() *Scorer {
	return &Scorer{matchWeight: DefaultMatchWeight, ocrWeight: DefaultOCRWeight}
}

// Score computes round(raw×0.6 + ocr×0.4) clamped to [0, 100]. When no word
// overlaps the candidate span, the OCR term falls back to the raw score so
// text-only backends are not penalised.
func (s *Scorer) Score(c domain.Candidate, doc *document.Document) float64 {
	raw := domain.ClampConfidence(c.RawScore)
	ocr, ok := doc.SpanConfidence(document.Span{Start: c.Start, End: c.End})
	if !ok {
		ocr = raw
	}
	return domain.ClampConfidence(math.Round(raw*s.matchWeight + ocr*s.ocrWeight))
}
