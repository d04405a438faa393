package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docfields/internal/config"
	"docfields/internal/domain"
	"docfields/internal/logger"
	"docfields/internal/port"
)

// BackendFactory creates an OCR engine from config.
type BackendFactory func(cfg *config.OCRConfig) (port.OCRBackend, error)

// registry of engine factories, populated by init() in each engine package
// or explicitly via RegisterBackend.
var (
	mu        sync.RWMutex
	factories = map[string]BackendFactory{}
)

// RegisterBackend registers an engine factory by name.
func RegisterBackend(name string, factory BackendFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// NewBackend creates the named engine using the registered factory.
func NewBackend(name string, cfg *config.OCRConfig) (port.OCRBackend, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ocr engine: %s", name)
	}
	return factory(cfg)
}

// Backends routes inputs to a backend by file type: images go through the
// configured engine chain, text and OCR dumps are read directly.
type Backends struct {
	images port.OCRBackend
	text   port.OCRBackend
	dump   port.OCRBackend
}

// NewBackends builds the image engine chain from cfg.Engines. An engine
// whose factory fails is logged and left out; with none left, image
// inputs report ErrBackendUnavailable.
func NewBackends(cfg *config.OCRConfig, log *zap.Logger) *Backends {
	log = logger.OrNop(log)
	var engines []port.OCRBackend
	for _, name := range cfg.Engines {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		e, err := NewBackend(name, cfg)
		if err != nil {
			log.Warn("ocr engine disabled", zap.String("engine", name), zap.Error(err))
			continue
		}
		engines = append(engines, e)
	}
	return NewBackendsWith(NewFallbackBackend(engines, cfg.Cooldown, log))
}

// NewBackendsWith routes images to the given backend.
func NewBackendsWith(images port.OCRBackend) *Backends {
	return &Backends{images: images, text: PlainTextBackend{}, dump: OCRJSONBackend{}}
}

// For returns the backend that handles ft.
func (b *Backends) For(ft domain.FileType) (port.OCRBackend, error) {
	switch {
	case ft.IsImage():
		if b.images == nil {
			return nil, fmt.Errorf("%w: no ocr engine configured", domain.ErrBackendUnavailable)
		}
		return b.images, nil
	case ft == domain.FileTypeText:
		return b.text, nil
	case ft == domain.FileTypeOCRJSON:
		return b.dump, nil
	default:
		return nil, domain.ErrUnsupportedFileType
	}
}

// Recognize detects the input type and runs the matching backend.
func (b *Backends) Recognize(ctx context.Context, in port.OCRInput) (*port.OCRResult, error) {
	ft, err := DetectFileType(in.Filename, in.ContentType)
	if err != nil {
		return nil, err
	}
	backend, err := b.For(ft)
	if err != nil {
		return nil, err
	}
	return backend.Recognize(ctx, in)
}
