package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"docfields/internal/domain"
	"docfields/internal/port"
)

// Backend names.
const (
	PlainTextName = "plaintext"
	OCRJSONName   = "ocrjson"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainTextBackend reads .txt inputs. It supplies no word geometry, so
// every field falls back to its raw match score.
type PlainTextBackend struct{}

func (PlainTextBackend) Name() string { return PlainTextName }

func (PlainTextBackend) Recognize(_ context.Context, in port.OCRInput) (*port.OCRResult, error) {
	content := bytes.TrimPrefix(in.Content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, domain.NewInputDecodeError(in.Filename, errors.New("text is not valid UTF-8"))
	}
	return &port.OCRResult{RawText: string(content), EngineName: PlainTextName}, nil
}

// OCRJSONBackend reads OCR dumps produced by an external engine:
// {"raw_text": "...", "words": [{"text","bbox","confidence"}], "engine_name": "..."}.
type OCRJSONBackend struct{}

func (OCRJSONBackend) Name() string { return OCRJSONName }

func (OCRJSONBackend) Recognize(_ context.Context, in port.OCRInput) (*port.OCRResult, error) {
	var out port.OCRResult
	if err := json.Unmarshal(bytes.TrimPrefix(in.Content, utf8BOM), &out); err != nil {
		return nil, domain.NewInputDecodeError(in.Filename, err)
	}
	if !utf8.ValidString(out.RawText) {
		return nil, domain.NewInputDecodeError(in.Filename, errors.New("raw_text is not valid UTF-8"))
	}
	if out.RawText == "" && len(out.Words) > 0 {
		return nil, domain.NewInputDecodeError(in.Filename, errors.New("words given without raw_text"))
	}
	if out.EngineName == "" {
		out.EngineName = OCRJSONName
	}
	return &out, nil
}
