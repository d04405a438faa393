package service

import (
	"fmt"

	"go.uber.org/zap"

	"docfields/internal/config"
	"docfields/internal/entity"
	"docfields/internal/extraction"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
	"docfields/internal/matcher"
	"docfields/internal/ocr"
	"docfields/internal/validator"
)

// NewPipelineFromConfig wires OCR backends, the entity recognizer, the
// extraction engine, rule validation and the profile catalog from cfg.
// OCR engines must be registered (by importing their packages) before
// calling it.
func NewPipelineFromConfig(cfg *config.Config, log *zap.Logger) (*Pipeline, error) {
	log = logger.OrNop(log)

	catalog, err := fieldspec.NewCatalog(cfg.Extraction.ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	if _, err := catalog.Get(cfg.Extraction.DefaultProfile); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}

	rec, err := entity.Load(&cfg.Entity)
	if err != nil {
		// Entity matching degrades to keyword and pattern fallbacks.
		log.Warn("entity recognizer unavailable",
			zap.String("recognizer", cfg.Entity.Recognizer),
			zap.Error(err))
		rec = nil
	}
	annotator := entity.NewAnnotator(rec, cfg.Entity.Timeout, log)

	e := cfg.Extraction
	engine := extraction.NewEngine(extraction.Options{
		Threshold:   e.Threshold,
		Workers:     e.Workers,
		AdaptiveCap: e.AdaptiveCap,
		Matcher: matcher.Options{
			RegexTimeout:      e.RegexTimeout,
			Fuzzy:             e.Fuzzy,
			MaxEditDistance:   e.MaxEditDistance,
			ValueWindow:       e.ValueWindow,
			LowWordConfidence: e.LowWordConfidence,
			PatternCacheSize:  e.PatternCacheSize,
		},
	}, annotator, log)

	backends := ocr.NewBackends(&cfg.OCR, log)
	p := NewPipeline(backends, engine, validator.NewEngine(nil, log), catalog, log)
	p.SetDefaultProfile(e.DefaultProfile)
	return p, nil
}
