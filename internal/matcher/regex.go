package matcher

import (
	"context"
	"math"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

func (m *Matcher) matchRegex(ctx context.Context, spec *fieldspec.Spec, doc *document.Document) ([]domain.Candidate, error) {
	text := doc.Text()
	var out []domain.Candidate
	seen := map[document.Span]bool{}

	for _, pattern := range spec.AllPatterns() {
		re, err := m.compile(pattern)
		if err != nil {
			// Validate already compiled it once; this only fails on a bad cache entry.
			return nil, err
		}

		match, err := re.FindStringMatch(text)
		for ; match != nil && err == nil; match, err = re.FindNextMatch(match) {
			if ctx.Err() != nil {
				return out, nil
			}
			if len(out) >= m.opts.MaxCandidates*len(spec.AllPatterns()) {
				break
			}

			// A participating first group is the value even when empty; an
			// empty whole match carries nothing.
			start, length := match.Index, match.Length
			if g := match.GroupByNumber(1); g != nil && len(g.Captures) > 0 {
				start, length = g.Index, g.Length
			} else if length == 0 {
				continue
			}
			span := document.Span{Start: doc.RuneToByte(start), End: doc.RuneToByte(start + length)}
			if seen[span] {
				continue
			}
			seen[span] = true
			out = append(out, m.candidate(spec, doc, span, m.regexScore(doc, span)))
		}
		if err != nil {
			return nil, regexTimeout(spec, pattern, err)
		}
	}
	return out, nil
}

// regexScore is ExactScore unless the span sits on words recognized below
// the low-confidence cut-off, in which case it degrades proportionally.
func (m *Matcher) regexScore(doc *document.Document, span document.Span) float64 {
	conf, ok := doc.SpanConfidence(span)
	if !ok || conf >= m.opts.LowWordConfidence {
		return ExactScore
	}
	return math.Round(ExactScore * conf / m.opts.LowWordConfidence)
}
