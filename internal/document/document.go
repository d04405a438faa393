// Package document holds the tokenized OCR output a run extracts from.
package document

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"docfields/internal/domain"
)

// Word is one recognized word with its box and confidence (0..100).
type Word struct {
	Text       string      `json:"text"`
	BBox       domain.BBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// Span is a half-open byte range [Start, End) into the raw text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Document is raw text plus optional word geometry. It is immutable after New.
type Document struct {
	text  string
	words []Word
	// spans[i] is the text offset of words[i]; ok[i] is false for words that
	// could not be aligned to the text.
	spans []Span
	ok    []bool
	// runeOffsets[i] is the byte offset of rune i; the final entry is len(text).
	runeOffsets []int
}

// New builds a Document. Words are aligned to the text in reading order by
// searching forward from the end of the previous aligned word; a match inside
// a longer word is skipped. Words that cannot be aligned carry no span.
func New(rawText string, words []Word) *Document {
	d := &Document{
		text:  rawText,
		words: append([]Word(nil), words...),
		spans: make([]Span, len(words)),
		ok:    make([]bool, len(words)),
	}

	cursor := 0
	for i, w := range d.words {
		token := strings.TrimSpace(w.Text)
		if token == "" {
			continue
		}
		start, ok := alignWord(rawText, cursor, token)
		if !ok {
			continue
		}
		d.spans[i] = Span{Start: start, End: start + len(token)}
		d.ok[i] = true
		cursor = start + len(token)
	}

	d.runeOffsets = make([]int, 0, utf8.RuneCountInString(rawText)+1)
	for i := range rawText {
		d.runeOffsets = append(d.runeOffsets, i)
	}
	d.runeOffsets = append(d.runeOffsets, len(rawText))
	return d
}

// alignWord finds the first occurrence of token at or after from that is not
// part of a longer word in a space-delimited script.
func alignWord(text string, from int, token string) (int, bool) {
	first, _ := utf8.DecodeRuneInString(token)
	last, _ := utf8.DecodeLastRuneInString(token)
	for from <= len(text) {
		idx := strings.Index(text[from:], token)
		if idx < 0 {
			return 0, false
		}
		start := from + idx
		end := start + len(token)
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if !(start > 0 && joins(prev, first)) && !(end < len(text) && joins(last, next)) {
			return start, true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return 0, false
}

// joins reports whether a and b would run together as one word. CJK text
// has no spaces, so its runes never count as joined.
func joins(a, b rune) bool {
	return wordRune(a) && wordRune(b)
}

func wordRune(r rune) bool {
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return false
	}
	return !unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Text returns the raw text.
func (d *Document) Text() string { return d.text }

// Words returns a copy of the word list.
func (d *Document) Words() []Word { return append([]Word(nil), d.words...) }

// HasWords reports whether any word carries geometry.
func (d *Document) HasWords() bool { return len(d.words) > 0 }

// RuneToByte converts a rune index to a byte offset, clamped to the text.
func (d *Document) RuneToByte(r int) int {
	if r <= 0 {
		return 0
	}
	if r >= len(d.runeOffsets) {
		return len(d.text)
	}
	return d.runeOffsets[r]
}

// ByteToRune converts a byte offset to the index of the rune containing it.
func (d *Document) ByteToRune(b int) int {
	return sort.SearchInts(d.runeOffsets, b)
}

// WordsOverlapping returns the words whose text offsets overlap span, in order.
func (d *Document) WordsOverlapping(span Span) []Word {
	var out []Word
	for i := range d.words {
		if d.ok[i] && d.spans[i].Overlaps(span) {
			out = append(out, d.words[i])
		}
	}
	return out
}

// SpanConfidence returns the mean confidence of the words overlapping span.
// ok is false when no word overlaps.
func (d *Document) SpanConfidence(span Span) (conf float64, ok bool) {
	words := d.WordsOverlapping(span)
	if len(words) == 0 {
		return 0, false
	}
	var sum float64
	for _, w := range words {
		sum += domain.ClampConfidence(w.Confidence)
	}
	return sum / float64(len(words)), true
}

// ConfidenceOfSpan is SpanConfidence with 0 for spans without word data.
func (d *Document) ConfidenceOfSpan(span Span) float64 {
	c, _ := d.SpanConfidence(span)
	return c
}

// BBoxOfSpan returns the union box of the overlapping words, or nil.
func (d *Document) BBoxOfSpan(span Span) *domain.BBox {
	words := d.WordsOverlapping(span)
	if len(words) == 0 {
		return nil
	}
	box := words[0].BBox
	for _, w := range words[1:] {
		box = box.Union(w.BBox)
	}
	return &box
}
