package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docfields/internal/csvexport"
	"docfields/internal/domain"
	"docfields/internal/fieldspec"
	"docfields/internal/port"
	"docfields/internal/service"
	"docfields/internal/storage"
	"docfields/internal/validator"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExtractionHandler handles extraction endpoints.
type ExtractionHandler struct {
	extractionService service.ExtractionService
	maxUploadSize     int64
}

// NewExtractionHandler creates a new ExtractionHandler. maxUploadSize is in
// bytes; zero disables the limit.
func NewExtractionHandler(extractionService service.ExtractionService, maxUploadSize int64) *ExtractionHandler {
	return &ExtractionHandler{extractionService: extractionService, maxUploadSize: maxUploadSize}
}

// ExtractionResponse is an extraction as returned by the API.
type ExtractionResponse struct {
	ID        uuid.UUID `json:"id"`
	Profile   string    `json:"profile,omitempty"`
	Corrected bool      `json:"corrected"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	*domain.StructuredResult
	Validation *validator.Report `json:"validation,omitempty"`
}

func toResponse(ext *service.Extraction) ExtractionResponse {
	return ExtractionResponse{
		ID:               ext.Record.ID,
		Profile:          ext.Record.Profile,
		Corrected:        ext.Record.Corrected,
		CreatedAt:        ext.Record.CreatedAt,
		UpdatedAt:        ext.Record.UpdatedAt,
		StructuredResult: ext.Result,
		Validation:       ext.Validation,
	}
}

// CreateExtractionRequest is the body of POST /api/v1/extractions.
type CreateExtractionRequest struct {
	Filename  string           `json:"filename" binding:"required"`
	OCR       *port.OCRResult  `json:"ocr" binding:"required"`
	Profile   string           `json:"profile"`
	Fields    []fieldspec.Spec `json:"fields"`
	Adaptive  bool             `json:"adaptive"`
	Threshold *float64         `json:"threshold"`
}

// Create handles POST /api/v1/extractions
// @Summary Extract fields from OCR output
// @Description Run field extraction over OCR text and words supplied by the caller, using a profile, explicit fields, or adaptive mode
// @Tags extractions
// @Accept json
// @Produce json
// @Param request body CreateExtractionRequest true "OCR output and field selection"
// @Success 201 {object} APIResponse{data=ExtractionResponse} "Extraction stored"
// @Failure 400 {object} APIResponse "Invalid request, malformed field spec or threshold"
// @Failure 404 {object} APIResponse "Profile not found"
// @Failure 500 {object} APIResponse "Extraction failed"
// @Router /extractions [post]
func (h *ExtractionHandler) Create(c *gin.Context) {
	var req CreateExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "filename and ocr are required")
		return
	}

	ext, err := h.extractionService.Extract(c.Request.Context(), &service.RunInput{
		Filename:  req.Filename,
		OCR:       req.OCR,
		Profile:   req.Profile,
		Fields:    req.Fields,
		Adaptive:  req.Adaptive,
		Threshold: req.Threshold,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, toResponse(ext))
}

// Upload handles POST /api/v1/extractions/upload
// @Summary Upload a document for extraction
// @Description Upload an image, text file or OCR JSON dump; images go through the configured OCR engines
// @Tags extractions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document (PNG, JPG, TIFF, TXT or OCR JSON)"
// @Param profile formData string false "Profile name"
// @Param fields formData string false "JSON list of field specs"
// @Param adaptive formData bool false "Generate fields from the document"
// @Param threshold formData number false "Review threshold (0-100)"
// @Success 201 {object} APIResponse{data=ExtractionResponse} "Extraction stored"
// @Failure 400 {object} APIResponse "Missing file, unsupported type or bad options"
// @Failure 413 {object} APIResponse "File too large"
// @Failure 503 {object} APIResponse "No OCR engine available"
// @Router /extractions/upload [post]
func (h *ExtractionHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleError(c, domain.ErrFileTooLarge)
			return
		}
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}

	in := &service.RunInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Profile:     c.PostForm("profile"),
	}
	if err := parseUploadOptions(c, in); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		HandleError(c, domain.NewInputDecodeError(header.Filename, err))
		return
	}
	in.Content = buf.Bytes()

	ext, err := h.extractionService.Extract(c.Request.Context(), in)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, toResponse(ext))
}

func parseUploadOptions(c *gin.Context, in *service.RunInput) error {
	if raw := c.PostForm("fields"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Fields); err != nil {
			return fmt.Errorf("fields must be a JSON list of field specs")
		}
	}
	if raw := c.PostForm("adaptive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("adaptive must be a boolean")
		}
		in.Adaptive = v
	}
	if raw := c.PostForm("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("threshold must be a number")
		}
		in.Threshold = &v
	}
	return nil
}

// List handles GET /api/v1/extractions
// @Summary List extractions
// @Description List stored extractions, newest first, with pagination
// @Tags extractions
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} APIResponse{data=[]domain.ExtractionRecord,meta=PagMeta} "List of extractions"
// @Failure 500 {object} APIResponse "Listing failed"
// @Router /extractions [get]
func (h *ExtractionHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	records, total, err := h.extractionService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, records, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/extractions/:id
// @Summary Get extraction by ID
// @Tags extractions
// @Produce json
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {object} APIResponse{data=ExtractionResponse} "Extraction"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Extraction not found"
// @Router /extractions/{id} [get]
func (h *ExtractionHandler) GetByID(c *gin.Context) {
	ext, ok := h.load(c)
	if !ok {
		return
	}
	RespondOK(c, toResponse(ext))
}

// CorrectFieldsRequest is the body of PATCH /api/v1/extractions/:id/fields.
type CorrectFieldsRequest struct {
	Corrections map[string]string `json:"corrections" binding:"required"`
}

// CorrectFields handles PATCH /api/v1/extractions/:id/fields
// @Summary Correct field values
// @Description Set reviewed values (confidence 100), recompute the review list and re-run profile rules
// @Tags extractions
// @Accept json
// @Produce json
// @Param id path string true "Extraction ID (UUID)"
// @Param request body CorrectFieldsRequest true "Field name to corrected value"
// @Success 200 {object} APIResponse{data=ExtractionResponse} "Corrected extraction"
// @Failure 400 {object} APIResponse "Invalid request or unknown field"
// @Failure 404 {object} APIResponse "Extraction not found"
// @Router /extractions/{id}/fields [patch]
func (h *ExtractionHandler) CorrectFields(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req CorrectFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Corrections) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "corrections must map field names to values")
		return
	}

	ext, err := h.extractionService.Correct(c.Request.Context(), id, req.Corrections)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, toResponse(ext))
}

// Delete handles DELETE /api/v1/extractions/:id
// @Summary Delete an extraction
// @Tags extractions
// @Produce json
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {object} APIResponse "Extraction deleted"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Extraction not found"
// @Router /extractions/{id} [delete]
func (h *ExtractionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.extractionService.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "extraction deleted"})
}

// ReviewCSV handles GET /api/v1/extractions/:id/review.csv
// @Summary Download the review list as CSV
// @Description Fields at or below the threshold, one row each, UTF-8 with BOM
// @Tags extractions
// @Produce text/csv
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {file} file "Review list"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Extraction not found"
// @Router /extractions/{id}/review.csv [get]
func (h *ExtractionHandler) ReviewCSV(c *gin.Context) {
	ext, ok := h.load(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := csvexport.WriteCSV(&buf, []*domain.StructuredResult{ext.Result}); err != nil {
		HandleError(c, err)
		return
	}
	attach(c, ext, "csv")
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}

// ReviewXLSX handles GET /api/v1/extractions/:id/review.xlsx
// @Summary Download the review list as a workbook
// @Tags extractions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {file} file "Review workbook"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Extraction not found"
// @Router /extractions/{id}/review.xlsx [get]
func (h *ExtractionHandler) ReviewXLSX(c *gin.Context) {
	ext, ok := h.load(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := csvexport.WriteXLSX(&buf, []*domain.StructuredResult{ext.Result}); err != nil {
		HandleError(c, err)
		return
	}
	attach(c, ext, "xlsx")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Profiles handles GET /api/v1/profiles
// @Summary List field profiles
// @Description Built-in and configured profiles with their fields and rules
// @Tags profiles
// @Produce json
// @Success 200 {object} APIResponse{data=[]fieldspec.Profile} "Profiles"
// @Router /profiles [get]
func (h *ExtractionHandler) Profiles(c *gin.Context) {
	RespondOK(c, h.extractionService.Profiles())
}

func (h *ExtractionHandler) load(c *gin.Context) (*service.Extraction, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	ext, err := h.extractionService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	return ext, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid extraction ID")
		return uuid.Nil, false
	}
	return id, true
}

func attach(c *gin.Context, ext *service.Extraction, format string) {
	name := csvexport.BuildFilename(storage.Stem(ext.Record.Filename), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}
