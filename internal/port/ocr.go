package port

import (
	"context"

	"docfields/internal/document"
)

// OCRInput carries one document's bytes to an OCR backend.
type OCRInput struct {
	Filename    string
	Content     []byte
	ContentType string
}

// OCRResult is what an OCR backend produces. Words may be empty when the
// engine only returns text.
type OCRResult struct {
	RawText    string          `json:"raw_text"`
	Words      []document.Word `json:"words"`
	EngineName string          `json:"engine_name"`
}

// OCRBackend abstracts an OCR engine. Implementations wrap transient
// failures in domain.ErrBackendUnavailable and unreadable input in
// domain.InputDecodeError.
type OCRBackend interface {
	Name() string
	Recognize(ctx context.Context, input OCRInput) (*OCRResult, error)
}
