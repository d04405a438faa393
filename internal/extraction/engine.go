// Package extraction runs field specs over a document and assembles the
// scored, reviewable result.
package extraction

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docfields/internal/adaptive"
	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/entity"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
	"docfields/internal/matcher"
	"docfields/internal/scorer"
)

// Options configures an Engine.
type Options struct {
	Threshold   float64
	Workers     int
	AdaptiveCap int
	Matcher     matcher.Options
}

// Engine is the extraction orchestrator. It holds no per-run state and is
// safe for concurrent use across documents.
type Engine struct {
	threshold float64
	workers   int
	matcher   *matcher.Matcher
	scorer    *scorer.Scorer
	generator *adaptive.Generator
	annotator *entity.Annotator
	logger    *zap.Logger
}

// NewEngine creates an Engine. annotator may be nil when no entity
// recognizer is configured.
func NewEngine(opts Options, annotator *entity.Annotator, log *zap.Logger) *Engine {
	log = logger.OrNop(log)
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if annotator == nil {
		annotator = entity.NewAnnotator(nil, 0, log)
	}
	return &Engine{
		threshold: opts.Threshold,
		workers:   opts.Workers,
		matcher:   matcher.New(opts.Matcher, log),
		scorer:    scorer.New(),
		generator: adaptive.New(opts.AdaptiveCap, log),
		annotator: annotator,
		logger:    log,
	}
}

// Threshold returns the default review threshold.
func (e *Engine) Threshold() float64 { return e.threshold }

// RunOptions override engine defaults for one run.
type RunOptions struct {
	// Threshold overrides the engine threshold when non-nil.
	Threshold *float64
}

// Run extracts specs from doc. An empty spec list switches to adaptive
// field generation. Field failures never abort the run: the field is
// reported with confidence 0 and a failure marker. Only context
// cancellation is returned as an error.
func (e *Engine) Run(ctx context.Context, filename string, doc *document.Document, specs []fieldspec.Spec, opts RunOptions) (*domain.StructuredResult, error) {
	threshold := e.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, domain.ErrInvalidThreshold
	}

	ents := entity.NewLazy(e.annotator, doc.Text())

	if len(specs) == 0 {
		specs = e.generator.Generate(ctx, doc, ents)
		e.logger.Debug("adaptive fields generated",
			zap.String("filename", filename),
			zap.Int("count", len(specs)))
	}
	specs, dropped := fieldspec.Dedupe(specs)
	for _, name := range dropped {
		e.logger.Warn("duplicate field name dropped",
			zap.String("filename", filename),
			zap.String("field", name))
	}

	fields := make([]domain.ExtractedField, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fields[i] = e.extractField(gctx, &specs[i], doc, ents)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &domain.StructuredResult{
		Filename:        filename,
		RawText:         doc.Text(),
		ExtractedFields: fields,
	}
	result.Recompute(threshold)
	return result, nil
}

func (e *Engine) extractField(ctx context.Context, spec *fieldspec.Spec, doc *document.Document, ents *entity.Lazy) domain.ExtractedField {
	field := domain.ExtractedField{Name: spec.Name}

	cands, err := e.matcher.Match(ctx, spec, doc, ents)
	if err != nil {
		field.Failure = err.Error()
		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.DebugLevel
		}
		e.logger.Check(level, "field extraction failed").Write(
			zap.String("field", spec.Name),
			zap.Error(err))
		return field
	}
	if len(cands) == 0 {
		return field
	}

	best := cands[0]
	value := spec.PostProcess.Apply(best.Value)
	field.Value = &value
	field.Confidence = e.scorer.Score(best, doc)
	field.BBox = best.BBox
	field.Candidates = cands
	return field
}
