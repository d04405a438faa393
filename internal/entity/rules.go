package entity

import (
	"context"
	"regexp"

	"docfields/internal/document"
	"docfields/internal/port"
)

// RulesName is the registry name of the pattern-based recognizer.
const RulesName = "rules"

type rule struct {
	label string
	re    *regexp.Regexp
}

const monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`

// Rules are applied in order; a later match overlapping an earlier one is dropped.
var rules = []rule{
	{"URL", regexp.MustCompile(`https?://[^\s<>"]+`)},
	{"EMAIL", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)+`)},
	{"DATE", regexp.MustCompile(`\d{4}年\d{1,2}月\d{1,2}日`)},
	{"DATE", regexp.MustCompile(`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}\b`)},
	{"DATE", regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{4}\b`)},
	{"DATE", regexp.MustCompile(`(?i)\b` + monthNames + `\s+\d{1,2},?\s+\d{4}\b`)},
	{"DATE", regexp.MustCompile(`(?i)\b\d{1,2}\s+` + monthNames + `,?\s+\d{4}\b`)},
	{"TIME", regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp][Mm])?\b`)},
	{"MONEY", regexp.MustCompile(`[$€£¥￥]\s?\d[\d,]*(?:\.\d+)?`)},
	{"MONEY", regexp.MustCompile(`\b\d[\d,]*(?:\.\d+)?\s?(?:USD|EUR|GBP|CNY|RMB|元)`)},
	{"PERCENT", regexp.MustCompile(`\b\d+(?:\.\d+)?\s?%`)},
	{"PHONE", regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?(?:\(\d{2,4}\)[\s-]?)?\d{3,4}[\s-]\d{3,4}(?:[\s-]\d{3,4})?`)},
	{"ORG", regexp.MustCompile(`\b(?:[A-Z][\w&]*\s+){0,4}[A-Z][\w&]*,?\s+(?:Inc|Ltd|LLC|Corp|Corporation|GmbH|Company|Co)\b\.?`)},
	{"PERSON", regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`)},
}

// RuleRecognizer tags dates, times, amounts, phone numbers, e-mail
// addresses, URLs, percentages, organisations and titled names with fixed
// patterns. It needs no model and never fails.
type RuleRecognizer struct{}

// NewRuleRecognizer returns the pattern-based recognizer.
func NewRuleRecognizer() *RuleRecognizer { return &RuleRecognizer{} }

func (r *RuleRecognizer) Name() string { return RulesName }

func (r *RuleRecognizer) Recognize(ctx context.Context, text string) ([]port.Entity, error) {
	var accepted []port.Entity
	for _, ru := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range ru.re.FindAllStringIndex(text, -1) {
			span := document.Span{Start: loc[0], End: loc[1]}
			if ru.label == "PHONE" && span.Start > 0 && isIdentChar(text[span.Start-1]) {
				continue
			}
			if overlapsAny(accepted, span) {
				continue
			}
			accepted = append(accepted, port.Entity{
				Type: ru.label,
				Span: span,
				Text: text[span.Start:span.End],
			})
		}
	}
	return accepted, nil
}

func overlapsAny(ents []port.Entity, span document.Span) bool {
	for _, e := range ents {
		if e.Span.Overlaps(span) {
			return true
		}
	}
	return false
}

func isIdentChar(b byte) bool {
	return b == '-' || b == '_' || b == '/' ||
		(b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
