// Package ocr turns uploaded documents into raw text plus word geometry.
package ocr

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/port"
)

// Normalize folds OCR output into the form matching runs against:
// NFKC (fullwidth digits and punctuation become ASCII) and LF line endings.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ToDocument normalises an OCR result and builds the tokenized document.
func ToDocument(res *port.OCRResult) *document.Document {
	words := make([]document.Word, len(res.Words))
	for i, w := range res.Words {
		w.Text = Normalize(w.Text)
		w.Confidence = domain.ClampConfidence(w.Confidence)
		words[i] = w
	}
	return document.New(Normalize(res.RawText), words)
}

// DetectFileType resolves the input type from the filename extension,
// falling back to the declared content type.
func DetectFileType(filename, contentType string) (domain.FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ft, ok := domain.AllowedExtensions[ext]; ok {
		return ft, nil
	}
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if ft, ok := domain.AllowedContentTypes[strings.ToLower(ct)]; ok {
		return ft, nil
	}
	return "", domain.ErrUnsupportedFileType
}
