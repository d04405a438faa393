package adaptive

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"docfields/internal/entity"
	"docfields/internal/fieldspec"
)

var (
	termRe        = regexp.MustCompile(`\p{L}[\p{L}\p{N}'-]*`)
	capPhraseRe   = regexp.MustCompile(`\b[A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){1,3}\b`)
	nounLikeTypes = map[string]bool{
		"ORG": true, "PERSON": true, "GPE": true, "LOC": true,
		"PRODUCT": true, "EVENT": true, "NORP": true, "WORK_OF_ART": true,
	}
)

var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "also": true, "been": true,
	"before": true, "being": true, "below": true, "between": true, "both": true, "could": true,
	"does": true, "doing": true, "down": true, "during": true, "each": true, "from": true,
	"further": true, "have": true, "having": true, "here": true, "into": true, "just": true,
	"more": true, "most": true, "once": true, "only": true, "other": true, "over": true,
	"same": true, "should": true, "some": true, "such": true, "than": true, "that": true,
	"their": true, "them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "until": true, "very": true,
	"were": true, "what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "your": true, "yours": true, "please": true,
}

type concept struct {
	surface string
	freq    int
	pos     int
	bonus   float64
}

func conceptProposals(ctx context.Context, text string, ents *entity.Lazy, headingTerms map[string]bool) []proposal {
	concepts := map[string]*concept{}
	bump := func(surface string, pos int, bonus float64) {
		key := strings.ToLower(surface)
		c, ok := concepts[key]
		if !ok {
			c = &concept{surface: surface, pos: pos}
			concepts[key] = c
		}
		c.freq++
		if pos < c.pos {
			c.pos, c.surface = pos, surface
		}
		c.bonus = max(c.bonus, bonus)
	}

	for _, loc := range termRe.FindAllStringIndex(text, -1) {
		term := text[loc[0]:loc[1]]
		n := utf8.RuneCountInString(term)
		if n < 4 || n > 30 || stopwords[strings.ToLower(term)] {
			continue
		}
		bump(term, loc[0], 0)
	}
	for _, loc := range capPhraseRe.FindAllStringIndex(text, -1) {
		bump(text[loc[0]:loc[1]], loc[0], 5)
	}

	entityTerms := map[string]bool{}
	if ents != nil {
		if all, err := ents.Get(ctx); err == nil {
			for _, e := range all {
				if !nounLikeTypes[e.Type] {
					continue
				}
				key := strings.ToLower(e.Text)
				entityTerms[key] = true
				// Entity spans that coincide with a counted term only add prominence.
				if c, ok := concepts[key]; ok {
					c.bonus = max(c.bonus, 8)
				} else {
					bump(e.Text, e.Span.Start, 8)
				}
			}
		}
	}

	keys := make([]string, 0, len(concepts))
	for k := range concepts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []proposal
	for _, k := range keys {
		c := concepts[k]
		if headingTerms[k] {
			continue
		}
		if c.freq < 2 && !entityTerms[k] {
			continue
		}
		out = append(out, proposal{
			spec: fieldspec.Spec{
				Name:        truncateRunes(titleCase(c.surface), maxNameRunes),
				Mode:        fieldspec.ModeRegex,
				Pattern:     `(?i)(?<![\p{L}\p{N}])` + regexp2.Escape(c.surface) + `(?![\p{L}\p{N}])`,
				Description: fmt.Sprintf("Concept mentioned %d times", c.freq),
			},
			category:  CategoryConcept,
			relevance: 10*float64(c.freq) + c.bonus,
			pos:       c.pos,
		})
	}
	return out
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
