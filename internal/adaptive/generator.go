// Package adaptive proposes field specs for documents that arrive without a
// field configuration.
package adaptive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"docfields/internal/document"
	"docfields/internal/entity"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
)

// DefaultCap is the field cap used when none is configured.
const DefaultCap = 12

// MainTopicField is the name of the single topic field.
const MainTopicField = "Main Topic"

// Category groups proposals by how they were found.
type Category string

const (
	CategoryTopic   Category = "topic"
	CategorySection Category = "section"
	CategoryStep    Category = "step"
	CategoryConcept Category = "concept"
)

type proposal struct {
	spec      fieldspec.Spec
	category  Category
	relevance float64
	// pos is the byte offset of the evidence, used to break relevance ties.
	pos int
}

// Generator derives a bounded, ranked field list from document structure.
// Output depends only on the text (and entity annotations when available),
// so identical input always yields the identical list.
type Generator struct {
	cap    int
	logger *zap.Logger
}

// New creates a Generator. maxFields outside 1..50 is replaced by DefaultCap.
func New(maxFields int, log *zap.Logger) *Generator {
	if maxFields < 1 || maxFields > 50 {
		maxFields = DefaultCap
	}
	return &Generator{cap: maxFields, logger: logger.OrNop(log)}
}

// Cap returns the configured field cap.
func (g *Generator) Cap() int { return g.cap }

// Generate returns at most Cap field specs, most relevant first. ents may be
// nil; annotation failures only remove entity-derived concepts.
func (g *Generator) Generate(ctx context.Context, doc *document.Document, ents *entity.Lazy) []fieldspec.Spec {
	text := doc.Text()
	lines := splitLines(text)

	var props []proposal
	topicLine := -1
	if p, idx, ok := mainTopic(lines); ok {
		props = append(props, p)
		topicLine = idx
	}
	sections, headingTerms := sectionProposals(lines, topicLine, len(text))
	props = append(props, sections...)
	props = append(props, stepProposals(lines, len(text))...)
	props = append(props, conceptProposals(ctx, text, ents, headingTerms)...)

	sort.SliceStable(props, func(i, j int) bool {
		if props[i].relevance != props[j].relevance {
			return props[i].relevance > props[j].relevance
		}
		if props[i].pos != props[j].pos {
			return props[i].pos < props[j].pos
		}
		return props[i].spec.Name < props[j].spec.Name
	})

	if len(props) > g.cap {
		g.logger.Debug("adaptive proposals truncated",
			zap.Int("proposed", len(props)),
			zap.Int("cap", g.cap))
		props = props[:g.cap]
	}

	used := map[string]int{}
	out := make([]fieldspec.Spec, 0, len(props))
	for _, p := range props {
		spec := p.spec
		used[spec.Name]++
		if n := used[spec.Name]; n > 1 {
			spec.Name = fmt.Sprintf("%s (%d)", spec.Name, n)
		}
		out = append(out, spec)
	}
	return out
}

type line struct {
	text  string // trimmed
	start int    // byte offset of the trimmed text
	index int
}

func splitLines(text string) []line {
	var out []line
	offset := 0
	for i, raw := range strings.Split(text, "\n") {
		trimmedLeft := strings.TrimLeft(raw, " \t\r　")
		t := strings.TrimRight(trimmedLeft, " \t\r　")
		if t != "" {
			out = append(out, line{text: t, start: offset + len(raw) - len(trimmedLeft), index: i})
		}
		offset += len(raw) + 1
	}
	return out
}

// positionBonus favours evidence near the top of the document.
func positionBonus(pos, textLen int) float64 {
	if textLen == 0 {
		return 0
	}
	return 10 * (1 - float64(pos)/float64(textLen))
}

func wordCount(s string) int { return len(strings.Fields(s)) }
