package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfields/internal/csvexport"
	"docfields/internal/domain"
	"docfields/internal/fieldspec"
	"docfields/internal/handler"
	"docfields/internal/ocr"
	"docfields/internal/router"
	"docfields/internal/service"
	"docfields/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func strPtr(s string) *string { return &s }

func sampleExtraction() *service.Extraction {
	res := &domain.StructuredResult{
		Filename: "invoice.png",
		RawText:  "Invoice Number: INV-1",
		ExtractedFields: []domain.ExtractedField{
			{Name: "Invoice Number", Value: strPtr("INV-1"), Confidence: 98},
			{Name: "Date", Confidence: 0},
		},
	}
	res.Recompute(80)
	return &service.Extraction{
		Record: &domain.ExtractionRecord{
			ID:        uuid.New(),
			Filename:  "invoice.png",
			Profile:   "default",
			CreatedAt: time.Now(),
		},
		Result: res,
	}
}

func newServer(svc service.ExtractionService, maxUpload int64) *gin.Engine {
	health := handler.NewHealthHandler(pingerFunc(func() error { return nil }), nil)
	return router.Setup(handler.NewExtractionHandler(svc, maxUpload), health, nil, nil)
}

func do(r http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreate_Success(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	ext := sampleExtraction()
	svc.On("Extract", mock.Anything, mock.MatchedBy(func(in *service.RunInput) bool {
		return in.Filename == "invoice.png" && in.OCR != nil && in.OCR.RawText == "Invoice Number: INV-1" &&
			in.Profile == "default" && in.Threshold != nil && *in.Threshold == 90
	})).Return(ext, nil)

	body := []byte(`{"filename":"invoice.png","profile":"default","threshold":90,
		"ocr":{"raw_text":"Invoice Number: INV-1","words":[],"engine_name":"tesseract"}}`)
	w := do(newServer(svc, 0), http.MethodPost, "/api/v1/extractions", body, "application/json")

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID                  string                  `json:"id"`
			Filename            string                  `json:"filename"`
			ExtractedFields     []domain.ExtractedField `json:"extracted_fields"`
			LowConfidenceFields []domain.ExtractedField `json:"low_confidence_fields"`
			OverallConfidence   float64                 `json:"overall_confidence"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, ext.Record.ID.String(), resp.Data.ID)
	assert.Equal(t, "invoice.png", resp.Data.Filename)
	assert.Len(t, resp.Data.ExtractedFields, 2)
	assert.Len(t, resp.Data.LowConfidenceFields, 1)
	assert.Equal(t, 49.0, resp.Data.OverallConfidence)
	svc.AssertExpectations(t)
}

func TestCreate_MissingOCR(t *testing.T) {
	svc := new(mocks.MockExtractionService)

	w := do(newServer(svc, 0), http.MethodPost, "/api/v1/extractions", []byte(`{"filename":"a.png"}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
	svc.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestCreate_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"profile", fmt.Errorf("%w: x", domain.ErrProfileNotFound), http.StatusNotFound, "PROFILE_NOT_FOUND"},
		{"threshold", domain.ErrInvalidThreshold, http.StatusBadRequest, "INVALID_THRESHOLD"},
		{"decode", domain.NewInputDecodeError("a.json", assert.AnError), http.StatusBadRequest, "INPUT_DECODE_ERROR"},
		{"backend", ocr.NewUnavailableError("remote", assert.AnError, 0), http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE"},
		{"internal", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockExtractionService)
			svc.On("Extract", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := []byte(`{"filename":"a.png","ocr":{"raw_text":"x"}}`)
			w := do(newServer(svc, 0), http.MethodPost, "/api/v1/extractions", body, "application/json")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}

func multipartBody(t *testing.T, filename string, content []byte, form map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range form {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Extract", mock.Anything, mock.MatchedBy(func(in *service.RunInput) bool {
		return in.Filename == "scan.txt" && string(in.Content) == "Total: 5" &&
			in.Adaptive && len(in.Fields) == 1 && in.Fields[0].Mode == fieldspec.ModeKeyword
	})).Return(sampleExtraction(), nil)

	body, ct := multipartBody(t, "scan.txt", []byte("Total: 5"), map[string]string{
		"fields":   `[{"name":"Total","match_mode":"keyword","keywords":["total"]}]`,
		"adaptive": "true",
	})
	w := do(newServer(svc, 1<<20), http.MethodPost, "/api/v1/extractions/upload", body, ct)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestUpload_MissingFile(t *testing.T) {
	body, ct := multipartBody(t, "", nil, map[string]string{"profile": "default"})
	w := do(newServer(new(mocks.MockExtractionService), 0), http.MethodPost, "/api/v1/extractions/upload", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	body, ct := multipartBody(t, "scan.txt", bytes.Repeat([]byte("a"), 64), nil)
	w := do(newServer(new(mocks.MockExtractionService), 16), http.MethodPost, "/api/v1/extractions/upload", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decode(t, w).Error.Code)
}

func TestUpload_BadOptions(t *testing.T) {
	for name, form := range map[string]map[string]string{
		"fields":    {"fields": "not json"},
		"threshold": {"threshold": "high"},
		"adaptive":  {"adaptive": "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			body, ct := multipartBody(t, "scan.txt", []byte("x"), form)
			w := do(newServer(new(mocks.MockExtractionService), 0), http.MethodPost, "/api/v1/extractions/upload", body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetByID(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	ext := sampleExtraction()
	svc.On("Get", mock.Anything, ext.Record.ID).Return(ext, nil)

	w := do(newServer(svc, 0), http.MethodGet, "/api/v1/extractions/"+ext.Record.ID.String(), nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestGetByID_InvalidAndMissing(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, domain.ErrExtractionNotFound)
	r := newServer(svc, 0)

	w := do(r, http.MethodGet, "/api/v1/extractions/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)

	w = do(r, http.MethodGet, "/api/v1/extractions/"+id.String(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "EXTRACTION_NOT_FOUND", decode(t, w).Error.Code)
}

func TestList_Pagination(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("List", mock.Anything, 0, 20).Return([]domain.ExtractionRecord{{ID: uuid.New()}}, 41, nil)

	w := do(newServer(svc, 0), http.MethodGet, "/api/v1/extractions?limit=500&offset=-3", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 41, resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
	svc.AssertExpectations(t)
}

func TestCorrectFields(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	ext := sampleExtraction()
	corrections := map[string]string{"Date": "2024-01-15"}
	svc.On("Correct", mock.Anything, ext.Record.ID, corrections).Return(ext, nil)

	body := []byte(`{"corrections":{"Date":"2024-01-15"}}`)
	w := do(newServer(svc, 0), http.MethodPatch, "/api/v1/extractions/"+ext.Record.ID.String()+"/fields", body, "application/json")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestCorrectFields_Errors(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	id := uuid.New()
	svc.On("Correct", mock.Anything, id, mock.Anything).Return(nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, "Nope"))
	r := newServer(svc, 0)
	path := "/api/v1/extractions/" + id.String() + "/fields"

	w := do(r, http.MethodPatch, path, []byte(`{"corrections":{}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)

	w = do(r, http.MethodPatch, path, []byte(`{"corrections":{"Nope":"x"}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_FIELD", decode(t, w).Error.Code)
}

func TestDelete(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	id := uuid.New()
	svc.On("Delete", mock.Anything, id).Return(nil)

	w := do(newServer(svc, 0), http.MethodDelete, "/api/v1/extractions/"+id.String(), nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestReviewCSV(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	ext := sampleExtraction()
	svc.On("Get", mock.Anything, ext.Record.ID).Return(ext, nil)

	w := do(newServer(svc, 0), http.MethodGet, "/api/v1/extractions/"+ext.Record.ID.String()+"/review.csv", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice_review_")
	body := w.Body.Bytes()
	assert.True(t, bytes.HasPrefix(body, csvexport.BOM))
	lines := strings.Split(strings.TrimSpace(string(body[len(csvexport.BOM):])), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "invoice.png,Date,")
}

func TestReviewXLSX(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	ext := sampleExtraction()
	svc.On("Get", mock.Anything, ext.Record.ID).Return(ext, nil)

	w := do(newServer(svc, 0), http.MethodGet, "/api/v1/extractions/"+ext.Record.ID.String()+"/review.xlsx", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestProfiles(t *testing.T) {
	svc := new(mocks.MockExtractionService)
	svc.On("Profiles").Return([]*fieldspec.Profile{{Name: "default"}})

	w := do(newServer(svc, 0), http.MethodGet, "/api/v1/profiles", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"default"`)
}
