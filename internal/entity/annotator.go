// Package entity adapts an external entity recognizer into a capability
// that either returns typed spans or reports itself unavailable.
package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docfields/internal/domain"
	"docfields/internal/logger"
	"docfields/internal/port"
)

// DefaultTimeout bounds a single Recognize call.
const DefaultTimeout = 2 * time.Second

// Annotator wraps an EntityRecognizer. A nil recognizer is valid and
// always reports ErrEntityUnavailable.
type Annotator struct {
	recognizer port.EntityRecognizer
	timeout    time.Duration
	logger     *zap.Logger
}

// NewAnnotator creates an Annotator. A non-positive timeout uses DefaultTimeout.
func NewAnnotator(rec port.EntityRecognizer, timeout time.Duration, log *zap.Logger) *Annotator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Annotator{recognizer: rec, timeout: timeout, logger: logger.OrNop(log)}
}

// Available reports whether a recognizer is configured.
func (a *Annotator) Available() bool {
	return a != nil && a.recognizer != nil
}

// Annotate returns entities sorted by span start, then type. Any recognizer
// failure, panic or timeout is reported as ErrEntityUnavailable.
func (a *Annotator) Annotate(ctx context.Context, text string) ([]port.Entity, error) {
	if !a.Available() {
		return nil, domain.ErrEntityUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		entities []port.Entity
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("recognizer panic: %v", r)}
			}
		}()
		ents, err := a.recognizer.Recognize(ctx, text)
		ch <- result{entities: ents, err: err}
	}()

	select {
	case <-ctx.Done():
		a.logger.Warn("entity recognizer timed out",
			zap.String("recognizer", a.recognizer.Name()),
			zap.Duration("timeout", a.timeout))
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEntityUnavailable, a.recognizer.Name(), ctx.Err())
	case res := <-ch:
		if res.err != nil {
			a.logger.Warn("entity recognizer failed",
				zap.String("recognizer", a.recognizer.Name()),
				zap.Error(res.err))
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrEntityUnavailable, a.recognizer.Name(), res.err)
		}
		return sanitize(res.entities, len(text)), nil
	}
}

// sanitize drops spans outside the text and orders the rest.
func sanitize(ents []port.Entity, textLen int) []port.Entity {
	out := make([]port.Entity, 0, len(ents))
	for _, e := range ents {
		if e.Span.Start < 0 || e.Span.End > textLen || e.Span.Start >= e.Span.End {
			continue
		}
		e.Type = strings.ToUpper(strings.TrimSpace(e.Type))
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Lazy memoises one annotation pass over a single document's text so that
// every entity-mode field in a run shares it.
type Lazy struct {
	annotator *Annotator
	text      string

	once     sync.Once
	entities []port.Entity
	err      error
}

// NewLazy binds an annotator to text. Nothing runs until Get is called.
func NewLazy(a *Annotator, text string) *Lazy {
	return &Lazy{annotator: a, text: text}
}

// Get annotates on first call and returns the memoised result afterwards.
func (l *Lazy) Get(ctx context.Context) ([]port.Entity, error) {
	l.once.Do(func() {
		l.entities, l.err = l.annotator.Annotate(ctx, l.text)
	})
	return l.entities, l.err
}

var labelFamilies = map[string][]string{
	"DATE":   {"DATE", "TIME"},
	"MONEY":  {"MONEY"},
	"PERSON": {"PERSON"},
	"ORG":    {"ORG"},
	"GPE":    {"GPE", "LOC"},
}

// Labels returns the recognizer labels that satisfy a field's entity type.
func Labels(entityType string) []string {
	t := strings.ToUpper(strings.TrimSpace(entityType))
	if fam, ok := labelFamilies[t]; ok {
		return fam
	}
	return []string{t}
}

// Filter returns the entities whose type belongs to entityType's family.
func Filter(ents []port.Entity, entityType string) []port.Entity {
	labels := Labels(entityType)
	var out []port.Entity
	for _, e := range ents {
		for _, l := range labels {
			if e.Type == l {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
