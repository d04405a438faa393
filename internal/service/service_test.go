package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfields/internal/domain"
	"docfields/internal/extraction"
	"docfields/internal/fieldspec"
	"docfields/internal/matcher"
	"docfields/internal/ocr"
	"docfields/internal/port"
	"docfields/internal/service"
	"docfields/internal/validator"
	"docfields/mocks"
)

const invoiceText = "Invoice Number: INV-2024-0099\nTotal: $450.00"

func newPipeline(t *testing.T, images port.OCRBackend) *service.Pipeline {
	t.Helper()
	catalog, err := fieldspec.NewCatalog("")
	require.NoError(t, err)
	engine := extraction.NewEngine(extraction.Options{
		Threshold:   domain.DefaultConfidenceThreshold,
		Workers:     2,
		AdaptiveCap: 10,
		Matcher:     matcher.Options{RegexTimeout: 100 * time.Millisecond},
	}, nil, nil)
	return service.NewPipeline(ocr.NewBackendsWith(images), engine, validator.NewEngine(nil, nil), catalog, nil)
}

func textInput() *service.RunInput {
	return &service.RunInput{Filename: "invoice.txt", Content: []byte(invoiceText)}
}

func value(t *testing.T, res *domain.StructuredResult, name string) *string {
	t.Helper()
	f := res.Field(name)
	require.NotNil(t, f, "field %s", name)
	return f.Value
}

func TestPipeline_DefaultProfile(t *testing.T) {
	out, err := newPipeline(t, nil).Run(context.Background(), textInput())
	require.NoError(t, err)

	assert.Equal(t, fieldspec.DefaultProfile, out.Profile)
	assert.Equal(t, ocr.PlainTextName, out.Engine)
	require.Len(t, out.Result.ExtractedFields, 3)
	assert.Equal(t, "INV-2024-0099", *value(t, out.Result, "Invoice Number"))
	assert.Equal(t, "450.00", *value(t, out.Result, "Amount"))
	assert.Nil(t, value(t, out.Result, "Date"))

	require.Len(t, out.Result.LowConfidenceFields, 1)
	assert.Equal(t, "Date", out.Result.LowConfidenceFields[0].Name)
	assert.InDelta(t, 200.0/3, out.Result.OverallConfidence, 1e-9)

	require.NotNil(t, out.Validation)
	assert.Equal(t, domain.ValidationStatusValid, out.Validation.Status)
	assert.Equal(t, domain.FieldStatusUnsure, out.Validation.FieldStatuses["Date"].Status)
}

func TestPipeline_SuppliedOCRSkipsBackend(t *testing.T) {
	images := new(mocks.MockOCRBackend)
	in := &service.RunInput{
		Filename: "scan.png",
		OCR:      &port.OCRResult{RawText: invoiceText, EngineName: "upstream"},
	}

	out, err := newPipeline(t, images).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "upstream", out.Engine)
	images.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestPipeline_ImageGoesThroughBackend(t *testing.T) {
	images := new(mocks.MockOCRBackend)
	images.On("Recognize", mock.Anything, mock.MatchedBy(func(in port.OCRInput) bool {
		return in.Filename == "scan.png"
	})).Return(&port.OCRResult{RawText: invoiceText, EngineName: "tesseract"}, nil)

	out, err := newPipeline(t, images).Run(context.Background(), &service.RunInput{Filename: "scan.png", Content: []byte{0x89}})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", out.Engine)
	images.AssertExpectations(t)
}

func TestPipeline_BackendUnavailable(t *testing.T) {
	_, err := newPipeline(t, nil).Run(context.Background(), &service.RunInput{Filename: "scan.png", Content: []byte{0x89}})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestPipeline_UnknownProfile(t *testing.T) {
	in := textInput()
	in.Profile = "nope"

	_, err := newPipeline(t, nil).Run(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestPipeline_DefaultProfileSetting(t *testing.T) {
	p := newPipeline(t, nil)
	p.SetDefaultProfile("contract_audit")

	out, err := p.Run(context.Background(), textInput())
	require.NoError(t, err)
	assert.Equal(t, "contract_audit", out.Profile)
}

func TestPipeline_FieldsAndThresholdOverride(t *testing.T) {
	threshold := 100.0
	in := textInput()
	in.Fields = []fieldspec.Spec{
		{Name: "Total", Mode: fieldspec.ModeKeyword, Keywords: []string{"total"}},
	}
	in.Threshold = &threshold

	out, err := newPipeline(t, nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out.Result.ExtractedFields, 1)
	assert.Equal(t, "$450.00", *value(t, out.Result, "Total"))
	assert.Len(t, out.Result.LowConfidenceFields, 1)
	assert.Equal(t, 100.0, out.Result.Threshold)
}

func TestPipeline_Adaptive(t *testing.T) {
	in := &service.RunInput{Filename: "notes.txt", Content: []byte("# Pancakes\nMix flour and milk."), Adaptive: true}

	out, err := newPipeline(t, nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out.Profile)
	assert.NotEmpty(t, out.Result.ExtractedFields)
	assert.LessOrEqual(t, len(out.Result.ExtractedFields), 10)
}

func TestPipeline_DecodeErrorIsReported(t *testing.T) {
	in := &service.RunInput{Filename: "dump.json", Content: []byte("{not json")}

	_, err := newPipeline(t, nil).Run(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInputDecode)
}

// --- ExtractionService ---

func newService(t *testing.T, repo *mocks.MockExtractionRepo, sink port.ResultSink) service.ExtractionService {
	t.Helper()
	return service.NewExtractionService(newPipeline(t, nil), repo, validator.NewEngine(nil, nil), sink, nil)
}

func TestExtract_PersistsAndWritesSink(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	sink := new(mocks.MockResultSink)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ExtractionRecord")).Return(nil)
	sink.On("Write", mock.Anything, mock.AnythingOfType("*domain.StructuredResult")).Return(nil)

	ext, err := newService(t, repo, sink).Extract(context.Background(), textInput())
	require.NoError(t, err)

	rec := ext.Record
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "invoice.txt", rec.Filename)
	assert.Equal(t, fieldspec.DefaultProfile, rec.Profile)
	assert.Equal(t, invoiceText, rec.RawText)
	assert.InDelta(t, 200.0/3, rec.OverallConfidence, 1e-9)
	assert.Equal(t, 1, rec.LowConfidence)
	assert.Equal(t, domain.DefaultConfidenceThreshold, rec.Threshold)
	assert.JSONEq(t, `{}`, string(rec.Failures))
	assert.NotEmpty(t, rec.Validation)
	assert.False(t, rec.Corrected)

	repo.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestExtract_SinkErrorIsNotFatal(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	sink := new(mocks.MockResultSink)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	sink.On("Write", mock.Anything, mock.Anything).Return(assert.AnError)

	ext, err := newService(t, repo, sink).Extract(context.Background(), textInput())
	require.NoError(t, err)
	assert.NotNil(t, ext.Result)
}

func TestExtract_RepoErrorIsReturned(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := newService(t, repo, nil).Extract(context.Background(), textInput())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExtract_FailuresAreStored(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	in := textInput()
	in.Fields = []fieldspec.Spec{{Name: "Broken", Mode: fieldspec.ModeRegex, Pattern: "(INV"}}

	ext, err := newService(t, repo, nil).Extract(context.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, string(ext.Record.Failures), `"Broken"`)
}

func storedExtraction(t *testing.T) (*mocks.MockExtractionRepo, service.ExtractionService, *domain.ExtractionRecord) {
	t.Helper()
	repo := new(mocks.MockExtractionRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	svc := newService(t, repo, nil)
	ext, err := svc.Extract(context.Background(), textInput())
	require.NoError(t, err)
	return repo, svc, ext.Record
}

func TestGet_DecodesStoredRecord(t *testing.T) {
	repo, svc, rec := storedExtraction(t)
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	ext, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-0099", *value(t, ext.Result, "Invoice Number"))
	assert.InDelta(t, 200.0/3, ext.Result.OverallConfidence, 1e-9)
	require.Len(t, ext.Result.LowConfidenceFields, 1)
	require.NotNil(t, ext.Validation)
	assert.Equal(t, domain.ValidationStatusValid, ext.Validation.Status)
}

func TestGet_NotFound(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrExtractionNotFound)

	_, err := newService(t, repo, nil).Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrExtractionNotFound)
}

func TestCorrect_RecomputesAndSaves(t *testing.T) {
	repo, svc, rec := storedExtraction(t)
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	repo.On("UpdateFields", mock.Anything, rec).Return(nil)

	ext, err := svc.Correct(context.Background(), rec.ID, map[string]string{"Date": "2024-01-15"})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-15", *value(t, ext.Result, "Date"))
	assert.Equal(t, 100.0, ext.Result.OverallConfidence)
	assert.Empty(t, ext.Result.LowConfidenceFields)
	assert.True(t, ext.Record.Corrected)
	assert.Equal(t, 0, ext.Record.LowConfidence)
	assert.Equal(t, domain.FieldStatusValid, ext.Validation.FieldStatuses["Date"].Status)
	repo.AssertExpectations(t)
}

func TestCorrect_UnknownField(t *testing.T) {
	repo, svc, rec := storedExtraction(t)
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	_, err := svc.Correct(context.Background(), rec.ID, map[string]string{"Nope": "x"})
	assert.ErrorIs(t, err, domain.ErrUnknownField)
	repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything)
}

func TestCorrect_RevalidatesWithProfileRules(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	svc := newService(t, repo, nil)

	in := &service.RunInput{
		Filename: "inv.txt",
		Content:  []byte("发票 金额：￥80,000 开票日期：2024年1月5日 供应商：Acme"),
		Profile:  "invoice_reimbursement",
	}
	ext, err := svc.Extract(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "80000", *value(t, ext.Result, "Invoice Amount"))
	// the normalised ¥ sign is still matched by the amount pattern
	amount := ext.Result.Field("Invoice Amount")
	require.NotEmpty(t, amount.Candidates)
	assert.Equal(t, "80,000", amount.Candidates[0].Value)
	assert.Equal(t, domain.ValidationStatusInvalid, ext.Validation.Status)

	rec := ext.Record
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	repo.On("UpdateFields", mock.Anything, rec).Return(nil)

	fixed, err := svc.Correct(context.Background(), rec.ID, map[string]string{
		"Invoice Amount": "800.00",
		"Invoice Date":   "2024-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ValidationStatusValid, fixed.Validation.Status)
	assert.Equal(t, 70.0, fixed.Record.Threshold)
}

func TestDelete_PassesThrough(t *testing.T) {
	repo := new(mocks.MockExtractionRepo)
	id := uuid.New()
	repo.On("Delete", mock.Anything, id).Return(domain.ErrExtractionNotFound)

	err := newService(t, repo, nil).Delete(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrExtractionNotFound)
}

func TestProfiles_Sorted(t *testing.T) {
	profiles := newService(t, new(mocks.MockExtractionRepo), nil).Profiles()
	require.NotEmpty(t, profiles)
	for i := 1; i < len(profiles); i++ {
		assert.Less(t, profiles[i-1].Name, profiles[i].Name)
	}
}

// --- Batch ---

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "x")
	writeFile(t, filepath.Join(dir, "a.JSON"), "{}")
	writeFile(t, filepath.Join(dir, "c.pdf"), "x")
	writeFile(t, filepath.Join(dir, "sub", "d.txt"), "x")
	exts := []string{".txt", "json"}

	flat, err := service.CollectInputs(dir, exts, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.JSON"), filepath.Join(dir, "b.txt")}, flat)

	deep, err := service.CollectInputs(dir, exts, true)
	require.NoError(t, err)
	assert.Len(t, deep, 3)

	single, err := service.CollectInputs(filepath.Join(dir, "c.pdf"), exts, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.pdf")}, single)

	_, err = service.CollectInputs(filepath.Join(dir, "missing"), exts, false)
	assert.Error(t, err)
}

func TestBatchRunner_FailuresDoNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	good1 := filepath.Join(dir, "one.txt")
	bad := filepath.Join(dir, "two.json")
	good2 := filepath.Join(dir, "three.txt")
	writeFile(t, good1, invoiceText)
	writeFile(t, bad, "{broken")
	writeFile(t, good2, "Total: $12.00")

	sink := new(mocks.MockResultSink)
	sink.On("Write", mock.Anything, mock.Anything).Return(nil)
	runner := service.NewBatchRunner(newPipeline(t, nil), sink, service.BatchConfig{Concurrency: 2}, nil)

	report := runner.Run(context.Background(), []string{good1, bad, good2}, service.RunInput{})
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)

	require.Len(t, report.Items, 3)
	assert.Equal(t, bad, report.Items[1].Path)
	assert.ErrorIs(t, report.Items[1].Err, domain.ErrInputDecode)
	assert.Equal(t, "one.txt", report.Items[0].Output.Result.Filename)

	results := report.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "three.txt", results[1].Filename)
	sink.AssertNumberOfCalls(t, "Write", 2)
}

func TestBatchRunner_MissingFileIsDecodeError(t *testing.T) {
	runner := service.NewBatchRunner(newPipeline(t, nil), nil, service.BatchConfig{}, nil)

	report := runner.Run(context.Background(), []string{filepath.Join(t.TempDir(), "gone.txt")}, service.RunInput{})
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Items[0].Err, domain.ErrInputDecode)
}

func TestBatchRunner_SinkErrorFailsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	writeFile(t, path, invoiceText)
	sink := new(mocks.MockResultSink)
	sink.On("Write", mock.Anything, mock.Anything).Return(assert.AnError)
	runner := service.NewBatchRunner(newPipeline(t, nil), sink, service.BatchConfig{Concurrency: 1}, nil)

	report := runner.Run(context.Background(), []string{path}, service.RunInput{})
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Items[0].Err, assert.AnError)
	assert.Empty(t, report.Results())
}

func TestBatchRunner_CanceledStopsIssuing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	writeFile(t, path, invoiceText)
	sink := new(mocks.MockResultSink)
	runner := service.NewBatchRunner(newPipeline(t, nil), sink, service.BatchConfig{Concurrency: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := runner.Run(ctx, []string{path, path}, service.RunInput{})
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}
