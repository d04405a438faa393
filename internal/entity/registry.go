package entity

import (
	"fmt"
	"sync"

	"docfields/internal/config"
	"docfields/internal/port"
)

// RecognizerFactory creates an EntityRecognizer from entity config.
type RecognizerFactory func(cfg *config.EntityConfig) (port.EntityRecognizer, error)

var (
	mu        sync.Mutex
	factories = map[string]RecognizerFactory{
		RulesName: func(*config.EntityConfig) (port.EntityRecognizer, error) {
			return NewRuleRecognizer(), nil
		},
		HTTPName: func(cfg *config.EntityConfig) (port.EntityRecognizer, error) {
			if cfg.Endpoint == "" {
				return nil, fmt.Errorf("entity.endpoint is required for the http recognizer")
			}
			return NewHTTPRecognizer(cfg.Endpoint, cfg.Timeout), nil
		},
	}
	// loaded caches one recognizer per name for the life of the process.
	loaded = map[string]*cachedRecognizer{}
)

type cachedRecognizer struct {
	once sync.Once
	rec  port.EntityRecognizer
	err  error
}

// RegisterRecognizer registers a recognizer factory by name.
func RegisterRecognizer(name string, factory RecognizerFactory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
	delete(loaded, name)
}

// Load returns the process-wide recognizer for cfg.Recognizer, creating it
// on first use. The "none" recognizer yields (nil, nil). Load errors are
// cached too, so a broken model is not retried on every document.
func Load(cfg *config.EntityConfig) (port.EntityRecognizer, error) {
	if cfg.Recognizer == "" || cfg.Recognizer == "none" {
		return nil, nil
	}

	mu.Lock()
	factory, ok := factories[cfg.Recognizer]
	if !ok {
		mu.Unlock()
		return nil, fmt.Errorf("unknown entity recognizer: %s", cfg.Recognizer)
	}
	c, ok := loaded[cfg.Recognizer]
	if !ok {
		c = &cachedRecognizer{}
		loaded[cfg.Recognizer] = c
	}
	mu.Unlock()

	c.once.Do(func() {
		c.rec, c.err = factory(cfg)
	})
	return c.rec, c.err
}
