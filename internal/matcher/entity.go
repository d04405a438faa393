package matcher

import (
	"context"
	"math"

	"go.uber.org/zap"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/entity"
	"docfields/internal/fieldspec"
)

func (m *Matcher) matchEntities(ctx context.Context, spec *fieldspec.Spec, doc *document.Document, ents *entity.Lazy) []domain.Candidate {
	if ents == nil {
		return nil
	}
	all, err := ents.Get(ctx)
	if err != nil {
		m.logger.Debug("entity annotation unavailable",
			zap.String("field", spec.Name),
			zap.Error(err))
		return nil
	}

	var out []domain.Candidate
	for _, e := range entity.Filter(all, spec.EntityType) {
		score := EntityScore
		if e.Confidence != nil {
			score = math.Round(EntityScore * domain.ClampConfidence(*e.Confidence) / 100)
		}
		out = append(out, m.candidate(spec, doc, document.Span{Start: e.Span.Start, End: e.Span.End}, score))
	}
	return out
}
