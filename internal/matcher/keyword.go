package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"docfields/internal/document"
	"docfields/internal/domain"
	"docfields/internal/fieldspec"
)

// fuzzyPenalty is deducted from ExactScore per edit.
const fuzzyPenalty = 10.0

func (m *Matcher) matchKeywords(spec *fieldspec.Spec, doc *document.Document) []domain.Candidate {
	text := doc.Text()
	var out []domain.Candidate
	seen := map[document.Span]bool{}

	add := func(keywordEnd int, score float64) {
		span, ok := m.valueAfter(text, keywordEnd)
		if !ok || seen[span] {
			return
		}
		seen[span] = true
		out = append(out, m.candidate(spec, doc, span, score))
	}

	for _, kw := range spec.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		for _, hit := range findFold(text, kw) {
			add(hit.End, ExactScore)
		}
	}
	if len(out) > 0 || !m.opts.Fuzzy {
		return out
	}

	tokens := tokenize(text)
	for _, kw := range spec.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		allowed := min(m.opts.MaxEditDistance, utf8.RuneCountInString(kw)/4)
		if allowed == 0 {
			continue
		}
		k := len(strings.Fields(kw))
		for i := 0; i+k <= len(tokens); i++ {
			window := tokens[i : i+k]
			parts := make([]string, k)
			for j, tok := range window {
				parts[j] = strings.ToLower(tok.text)
			}
			last := len(parts) - 1
			parts[last] = strings.TrimRight(parts[last], ":：")
			d := levenshtein.Distance(strings.Join(parts, " "), kw, nil)
			if d == 0 || d > allowed {
				continue
			}
			add(window[k-1].span.End, ExactScore-fuzzyPenalty*float64(d))
		}
	}
	return out
}

type token struct {
	text string
	span document.Span
}

func tokenize(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, token{text: text[start:i], span: document.Span{Start: start, End: i}})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{text: text[start:], span: document.Span{Start: start, End: len(text)}})
	}
	return out
}

// findFold returns every case-insensitive occurrence of kw that is not glued
// to a neighbouring word character.
func findFold(text, kw string) []document.Span {
	var out []document.Span
	first, _ := utf8.DecodeRuneInString(kw)
	lastR, _ := utf8.DecodeLastRuneInString(kw)

	for i := 0; i < len(text); {
		end, ok := hasPrefixFold(text[i:], kw)
		if ok {
			end += i
			prev, _ := utf8.DecodeLastRuneInString(text[:i])
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !(i > 0 && glued(prev, first)) && !(end < len(text) && glued(lastR, next)) {
				out = append(out, document.Span{Start: i, End: end})
				i = end
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return out
}

// hasPrefixFold compares rune by rune so byte lengths in text are preserved.
func hasPrefixFold(s, prefix string) (int, bool) {
	i := 0
	for _, pr := range prefix {
		if i >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[i:])
		if sr != pr && unicode.ToLower(sr) != unicode.ToLower(pr) {
			return 0, false
		}
		i += size
	}
	return i, true
}

// glued reports whether a and b would form one word in a space-delimited script.
func glued(a, b rune) bool {
	return isSpacedWordRune(a) && isSpacedWordRune(b)
}

func isSpacedWordRune(r rune) bool {
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return false
	}
	return !unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// valueAfter finds the value that follows a keyword ending at pos. It skips
// separators and leaders (but not a sign or decimal point before a digit)
// and at most one line break, then reads up to the next strong delimiter or
// ValueWindow runes.
func (m *Matcher) valueAfter(text string, pos int) (document.Span, bool) {
	i := pos
	crossedLine := false
skip:
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == ' ' || r == '\t' || r == '　' || strings.ContainsRune(":：=#", r):
			i += size
		case strings.ContainsRune("-–.", r):
			// a sign or decimal point in front of a digit belongs to the value
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if unicode.IsDigit(next) {
				break skip
			}
			i += size
		case (r == '\n' || r == '\r') && !crossedLine:
			crossedLine = r == '\n'
			i += size
		default:
			break skip
		}
	}

	start := i
	end := i
	runes := 0
	for i < len(text) && runes < m.opts.ValueWindow {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\n' || r == '\r' || r == '\t' || strings.ContainsRune(";；，。：|", r) {
			break
		}
		if r == ' ' || r == '　' {
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if next == ' ' || next == '　' {
				break
			}
		}
		if r == ',' || r == '.' || r == ':' {
			next, nsize := utf8.DecodeRuneInString(text[i+size:])
			if nsize == 0 || unicode.IsSpace(next) {
				break
			}
		}
		i += size
		runes++
		if !unicode.IsSpace(r) {
			end = i
		}
	}
	if end <= start {
		return document.Span{}, false
	}
	return document.Span{Start: start, End: end}, true
}
