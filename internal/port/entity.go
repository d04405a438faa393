package port

import (
	"context"

	"docfields/internal/document"
)

// Entity is a typed span reported by an entity recognizer.
type Entity struct {
	Type string        `json:"entity_type"`
	Span document.Span `json:"span"`
	Text string        `json:"text"`
	// Confidence is the recognizer's own score (0..100), when it reports one.
	Confidence *float64 `json:"confidence,omitempty"`
}

// EntityRecognizer abstracts an NLP capability that tags spans of text.
// Implementations must be deterministic for identical input.
type EntityRecognizer interface {
	Name() string
	Recognize(ctx context.Context, text string) ([]Entity, error)
}
