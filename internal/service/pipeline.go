package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docfields/internal/domain"
	"docfields/internal/extraction"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
	"docfields/internal/ocr"
	"docfields/internal/port"
	"docfields/internal/validator"
)

// Recognizer turns an uploaded document into OCR output.
type Recognizer interface {
	Recognize(ctx context.Context, in port.OCRInput) (*port.OCRResult, error)
}

// RunInput describes one document to extract.
type RunInput struct {
	Filename    string
	Content     []byte
	ContentType string

	// OCR, when set, is used instead of running a backend on Content.
	OCR *port.OCRResult

	// Profile names a catalog profile; empty means the default profile.
	// ProfileSpec, when set, is used instead of a catalog lookup.
	Profile     string
	ProfileSpec *fieldspec.Profile

	// Fields overrides the profile's fields. The profile still supplies
	// threshold and rules.
	Fields []fieldspec.Spec
	// Adaptive ignores profile and fields and generates fields from the text.
	Adaptive bool

	Threshold *float64
}

// RunOutput is a finished, validated extraction.
type RunOutput struct {
	Result     *domain.StructuredResult
	Validation *validator.Report
	Profile    string
	Engine     string
}

// Pipeline runs OCR, extraction and rule validation for one document. It
// does not persist anything.
type Pipeline struct {
	ocr       Recognizer
	engine    *extraction.Engine
	validator *validator.Engine
	catalog   *fieldspec.Catalog
	logger    *zap.Logger

	defaultProfile string
}

// NewPipeline creates a Pipeline.
func NewPipeline(rec Recognizer, engine *extraction.Engine, v *validator.Engine, catalog *fieldspec.Catalog, log *zap.Logger) *Pipeline {
	return &Pipeline{ocr: rec, engine: engine, validator: v, catalog: catalog, logger: logger.OrNop(log)}
}

// SetDefaultProfile sets the profile used when RunInput names none.
func (p *Pipeline) SetDefaultProfile(name string) { p.defaultProfile = name }

// Catalog returns the profile catalog.
func (p *Pipeline) Catalog() *fieldspec.Catalog { return p.catalog }

// Run processes in. OCR and decode failures are returned; field-level
// failures are reported inside the result.
func (p *Pipeline) Run(ctx context.Context, in *RunInput) (*RunOutput, error) {
	res := in.OCR
	if res == nil {
		var err error
		res, err = p.ocr.Recognize(ctx, port.OCRInput{
			Filename:    in.Filename,
			Content:     in.Content,
			ContentType: in.ContentType,
		})
		if err != nil {
			return nil, fmt.Errorf("recognizing %s: %w", in.Filename, err)
		}
	}

	specs, rules, threshold, profileName, err := p.resolve(in)
	if err != nil {
		return nil, err
	}

	doc := ocr.ToDocument(res)
	result, err := p.engine.Run(ctx, in.Filename, doc, specs, extraction.RunOptions{Threshold: threshold})
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", in.Filename, err)
	}

	report, err := p.validator.Validate(ctx, result, rules)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", in.Filename, err)
	}

	p.logger.Info("document extracted",
		zap.String("filename", in.Filename),
		zap.String("engine", res.EngineName),
		zap.String("profile", profileName),
		zap.Int("fields", len(result.ExtractedFields)),
		zap.Int("low_confidence", len(result.LowConfidenceFields)),
		zap.Float64("overall_confidence", result.OverallConfidence))

	return &RunOutput{
		Result:     result,
		Validation: report,
		Profile:    profileName,
		Engine:     res.EngineName,
	}, nil
}

func (p *Pipeline) resolve(in *RunInput) ([]fieldspec.Spec, []fieldspec.RuleSpec, *float64, string, error) {
	if in.Adaptive {
		return nil, nil, in.Threshold, "", nil
	}

	profile := in.ProfileSpec
	if profile == nil {
		var err error
		name := in.Profile
		if name == "" {
			name = p.defaultProfile
		}
		profile, err = p.catalog.Get(name)
		if err != nil {
			return nil, nil, nil, "", err
		}
	}

	specs := profile.Fields
	if len(in.Fields) > 0 {
		specs = in.Fields
	}
	threshold := in.Threshold
	if threshold == nil {
		threshold = profile.Threshold
	}
	return specs, profile.Rules, threshold, profile.Name, nil
}
