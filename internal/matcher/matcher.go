// Package matcher locates candidate values for a field in a document.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/entity"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
)

// Raw match scores.
const (
	ExactScore  = 100.0
	EntityScore = 90.0
)

// Options tunes matching. Zero values fall back to defaults.
type Options struct {
	RegexTimeout      time.Duration
	Fuzzy             bool
	MaxEditDistance   int
	ValueWindow       int
	LowWordConfidence float64
	MaxCandidates     int
	// PatternCacheSize bounds the compiled-regex cache. Adaptive runs build
	// patterns from each document's text, so the cache must not grow freely.
	PatternCacheSize int
}

func (o Options) withDefaults() Options {
	if o.RegexTimeout <= 0 {
		o.RegexTimeout = 250 * time.Millisecond
	}
	if o.MaxEditDistance <= 0 {
		o.MaxEditDistance = 2
	}
	if o.ValueWindow <= 0 {
		o.ValueWindow = 50
	}
	if o.LowWordConfidence <= 0 {
		o.LowWordConfidence = 60
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 20
	}
	if o.PatternCacheSize <= 0 {
		o.PatternCacheSize = 256
	}
	return o
}

// Matcher finds candidates for field specs. It is safe for concurrent use.
type Matcher struct {
	opts   Options
	logger *zap.Logger

	// compiled caches regexes by pattern source, least recently used first out.
	compiled *lru.Cache[string, *regexp2.Regexp]
}

// New creates a Matcher.
func New(opts Options, log *zap.Logger) *Matcher {
	opts = opts.withDefaults()
	// New only fails for a non-positive size.
	cache, _ := lru.New[string, *regexp2.Regexp](opts.PatternCacheSize)
	return &Matcher{opts: opts, logger: logger.OrNop(log), compiled: cache}
}

// CachedPatterns returns the number of compiled patterns currently cached.
func (m *Matcher) CachedPatterns() int { return m.compiled.Len() }

// Match returns the candidates for spec, best first. ents supplies entity
// annotations for the document and may be nil. Entity unavailability is not
// an error: entity-mode fields fall back to keywords and then patterns.
// Errors wrap domain.ErrMalformedFieldSpec or domain.ErrRegexTimeout.
func (m *Matcher) Match(ctx context.Context, spec *fieldspec.Spec, doc *document.Document, ents *entity.Lazy) ([]domain.Candidate, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var strategies []fieldspec.MatchMode
	switch spec.Mode {
	case fieldspec.ModeKeyword:
		strategies = []fieldspec.MatchMode{fieldspec.ModeKeyword, fieldspec.ModeRegex}
	case fieldspec.ModeRegex:
		strategies = []fieldspec.MatchMode{fieldspec.ModeRegex, fieldspec.ModeKeyword}
	case fieldspec.ModeEntity:
		strategies = []fieldspec.MatchMode{fieldspec.ModeEntity, fieldspec.ModeKeyword, fieldspec.ModeRegex}
	}

	for _, mode := range strategies {
		var (
			cands []domain.Candidate
			err   error
		)
		switch mode {
		case fieldspec.ModeKeyword:
			if !spec.HasKeywords() {
				continue
			}
			cands = m.matchKeywords(spec, doc)
		case fieldspec.ModeRegex:
			if len(spec.AllPatterns()) == 0 {
				continue
			}
			cands, err = m.matchRegex(ctx, spec, doc)
		case fieldspec.ModeEntity:
			cands = m.matchEntities(ctx, spec, doc, ents)
		}
		if err != nil {
			return nil, err
		}
		if len(cands) > 0 {
			if mode != spec.Mode {
				m.logger.Debug("field matched by fallback",
					zap.String("field", spec.Name),
					zap.String("mode", string(spec.Mode)),
					zap.String("fallback", string(mode)))
			}
			return m.rank(cands), nil
		}
	}
	return nil, nil
}

// rank orders by raw score descending, then earliest start, and caps the list.
func (m *Matcher) rank(cands []domain.Candidate) []domain.Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].RawScore != cands[j].RawScore {
			return cands[i].RawScore > cands[j].RawScore
		}
		return cands[i].Start < cands[j].Start
	})
	if len(cands) > m.opts.MaxCandidates {
		cands = cands[:m.opts.MaxCandidates]
	}
	return cands
}

func (m *Matcher) candidate(spec *fieldspec.Spec, doc *document.Document, span document.Span, score float64) domain.Candidate {
	return domain.Candidate{
		FieldName: spec.Name,
		Value:     doc.Text()[span.Start:span.End],
		Start:     span.Start,
		End:       span.End,
		BBox:      doc.BBoxOfSpan(span),
		RawScore:  domain.ClampConfidence(score),
	}
}

func (m *Matcher) compile(pattern string) (*regexp2.Regexp, error) {
	if re, ok := m.compiled.Get(pattern); ok {
		return re, nil
	}
	re, err := fieldspec.Compile(pattern, m.opts.RegexTimeout)
	if err != nil {
		return nil, err
	}
	m.compiled.Add(pattern, re)
	return re, nil
}

// IsFieldFailure reports whether err should mark a single field as failed
// rather than abort the document.
func IsFieldFailure(err error) bool {
	return errors.Is(err, domain.ErrMalformedFieldSpec) || errors.Is(err, domain.ErrRegexTimeout)
}

func regexTimeout(spec *fieldspec.Spec, pattern string, err error) error {
	return fmt.Errorf("%w: field %s pattern %q: %v", domain.ErrRegexTimeout, spec.Name, pattern, err)
}
