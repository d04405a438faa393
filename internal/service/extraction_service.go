package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docfields/internal/domain"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
	"docfields/internal/port"
	"docfields/internal/validator"
)

// Extraction is a stored extraction with its decoded result.
type Extraction struct {
	Record     *domain.ExtractionRecord
	Result     *domain.StructuredResult
	Validation *validator.Report
}

// ExtractionService defines the extraction management contract.
type ExtractionService interface {
	Extract(ctx context.Context, in *RunInput) (*Extraction, error)
	Get(ctx context.Context, id uuid.UUID) (*Extraction, error)
	List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error)
	Correct(ctx context.Context, id uuid.UUID, corrections map[string]string) (*Extraction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Profiles() []*fieldspec.Profile
}

type extractionService struct {
	pipeline  *Pipeline
	repo      port.ExtractionRepository
	validator *validator.Engine
	sink      port.ResultSink
	logger    *zap.Logger
}

// NewExtractionService creates a new ExtractionService. sink may be nil; a
// nil validator uses the default rule registry.
func NewExtractionService(
	pipeline *Pipeline,
	repo port.ExtractionRepository,
	v *validator.Engine,
	sink port.ResultSink,
	log *zap.Logger,
) ExtractionService {
	if v == nil {
		v = validator.NewEngine(nil, log)
	}
	return &extractionService{
		pipeline:  pipeline,
		repo:      repo,
		validator: v,
		sink:      sink,
		logger:    logger.OrNop(log),
	}
}

func (s *extractionService) Extract(ctx context.Context, in *RunInput) (*Extraction, error) {
	out, err := s.pipeline.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	rec := &domain.ExtractionRecord{
		ID:       uuid.New(),
		Filename: in.Filename,
		Profile:  out.Profile,
		RawText:  out.Result.RawText,
	}
	if err := encodeRecord(rec, out.Result, out.Validation); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving extraction: %w", err)
	}

	if s.sink != nil {
		if err := s.sink.Write(ctx, out.Result); err != nil {
			s.logger.Warn("result sink write failed",
				zap.String("extraction_id", rec.ID.String()),
				zap.Error(err))
		}
	}

	return &Extraction{Record: rec, Result: out.Result, Validation: out.Validation}, nil
}

func (s *extractionService) Get(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeRecord(rec)
}

func (s *extractionService) List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Correct applies human-verified values, revalidates against the stored
// profile's rules and saves the result.
func (s *extractionService) Correct(ctx context.Context, id uuid.UUID, corrections map[string]string) (*Extraction, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ext, err := decodeRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := ext.Result.ApplyCorrections(corrections); err != nil {
		return nil, err
	}

	var rules []fieldspec.RuleSpec
	if rec.Profile != "" {
		profile, err := s.pipeline.Catalog().Get(rec.Profile)
		switch {
		case err == nil:
			rules = profile.Rules
		case errors.Is(err, domain.ErrProfileNotFound):
			s.logger.Warn("profile no longer available, skipping rules",
				zap.String("extraction_id", id.String()),
				zap.String("profile", rec.Profile))
		default:
			return nil, err
		}
	}
	report, err := s.validator.Validate(ctx, ext.Result, rules)
	if err != nil {
		return nil, err
	}

	rec.Corrected = true
	if err := encodeRecord(rec, ext.Result, report); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFields(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving corrections: %w", err)
	}

	s.logger.Info("extraction corrected",
		zap.String("extraction_id", id.String()),
		zap.Int("fields", len(corrections)),
		zap.Float64("overall_confidence", ext.Result.OverallConfidence))
	return &Extraction{Record: rec, Result: ext.Result, Validation: report}, nil
}

func (s *extractionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *extractionService) Profiles() []*fieldspec.Profile {
	return s.pipeline.Catalog().List()
}

// encodeRecord copies result and report into the record's stored columns.
func encodeRecord(rec *domain.ExtractionRecord, res *domain.StructuredResult, report *validator.Report) error {
	fields, err := json.Marshal(res.ExtractedFields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	failures := map[string]string{}
	for i := range res.ExtractedFields {
		if f := res.ExtractedFields[i].Failure; f != "" {
			failures[res.ExtractedFields[i].Name] = f
		}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encoding failures: %w", err)
	}
	var validationJSON json.RawMessage
	if report != nil {
		if validationJSON, err = json.Marshal(report); err != nil {
			return fmt.Errorf("encoding validation: %w", err)
		}
	}

	rec.Fields = fields
	rec.Failures = failuresJSON
	rec.Validation = validationJSON
	rec.Threshold = res.Threshold
	rec.OverallConfidence = res.OverallConfidence
	rec.LowConfidence = len(res.LowConfidenceFields)
	return nil
}

// decodeRecord rebuilds the result from a stored record.
func decodeRecord(rec *domain.ExtractionRecord) (*Extraction, error) {
	var fields []domain.ExtractedField
	if err := json.Unmarshal(rec.Fields, &fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s: %w", rec.ID, err)
	}
	if len(rec.Failures) > 0 {
		var failures map[string]string
		if err := json.Unmarshal(rec.Failures, &failures); err != nil {
			return nil, fmt.Errorf("decoding failures of %s: %w", rec.ID, err)
		}
		for i := range fields {
			fields[i].Failure = failures[fields[i].Name]
		}
	}
	var report *validator.Report
	if len(rec.Validation) > 0 {
		if err := json.Unmarshal(rec.Validation, &report); err != nil {
			return nil, fmt.Errorf("decoding validation of %s: %w", rec.ID, err)
		}
	}

	res := &domain.StructuredResult{
		Filename:        rec.Filename,
		RawText:         rec.RawText,
		ExtractedFields: fields,
	}
	res.Recompute(rec.Threshold)
	return &Extraction{Record: rec, Result: res, Validation: report}, nil
}
