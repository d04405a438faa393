// Package tesseract is an OCR engine backed by the local Tesseract library.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"docfields/internal/config"
	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/ocr"
	"docfields/internal/port"
)

// Name is the engine name used in config.
const Name = "tesseract"

func init() {
	ocr.RegisterBackend(Name, func(cfg *config.OCRConfig) (port.OCRBackend, error) {
		return NewEngine(cfg), nil
	})
}

// Engine implements port.OCRBackend with gosseract. A client is created per
// call because gosseract clients are not safe for concurrent use.
type Engine struct {
	language      string
	pageSegMode   int
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed OCR engine.
func NewEngine(cfg *config.OCRConfig) *Engine {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &Engine{
		language:      lang,
		pageSegMode:   cfg.PageSegMode,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return Name }

// Recognize runs OCR on an image. Tesseract calls are not cancellable, so
// ctx is only checked before starting.
func (e *Engine) Recognize(ctx context.Context, in port.OCRInput) (*port.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.language); err != nil {
		return nil, ocr.NewUnavailableError(Name, fmt.Errorf("set language: %w", err), 0)
	}
	if e.pageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.pageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Content); err != nil {
		return nil, domain.NewInputDecodeError(in.Filename, err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	return &port.OCRResult{
		RawText:    text,
		Words:      extractWords(c),
		EngineName: Name,
	}, nil
}

func extractWords(c *gosseract.Client) []document.Word {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	words := make([]document.Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, document.Word{
			Text:       b.Word,
			BBox:       domain.BBox{b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y},
			Confidence: domain.ClampConfidence(b.Confidence),
		})
	}
	return words
}
