package adaptive

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"docfields/internal/fieldspec"
)

var (
	markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	numberedRe        = regexp.MustCompile(`^((?:\d+\.)+\d*|\d+\)|[IVXLC]+\.|[A-Z]\.)\s+(.+)$`)
	stepRe            = regexp.MustCompile(`^(?i:step)\s*\d+\s*[:.)\-]?\s*(.+)$`)
	bulletRe          = regexp.MustCompile(`^[-*•·]\s+(.+)$`)
)

const maxNameRunes = 60

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

func mainTopic(lines []line) (proposal, int, bool) {
	for i, l := range lines {
		if i >= 5 {
			break
		}
		if m := markdownHeadingRe.FindStringSubmatch(l.text); m != nil && len(m[1]) == 1 {
			return topicProposal(m[2], l), l.index, true
		}
	}
	if len(lines) > 0 && isTitleLike(lines[0].text) {
		return topicProposal(strings.TrimLeft(lines[0].text, "# "), lines[0]), lines[0].index, true
	}
	return proposal{}, -1, false
}

func topicProposal(title string, l line) proposal {
	return proposal{
		spec: fieldspec.Spec{
			Name:        MainTopicField,
			Mode:        fieldspec.ModeRegex,
			Pattern:     `(?m)^[ \t]*(?:#+[ \t]*)?(` + regexp2.Escape(title) + `)`,
			Description: "Document title",
		},
		category:  CategoryTopic,
		relevance: 1000,
		pos:       l.start,
	}
}

func isTitleLike(s string) bool {
	if s == "" || wordCount(s) > 12 || utf8.RuneCountInString(s) > 80 {
		return false
	}
	if strings.ContainsAny(s[len(s)-1:], ".,;") {
		return false
	}
	if numberedRe.MatchString(s) || bulletRe.MatchString(s) || stepRe.MatchString(s) {
		return false
	}
	// "Key: value" lines are data, not titles.
	if i := strings.IndexAny(s, ":："); i >= 0 && strings.TrimSpace(strings.TrimLeft(s[i:], ":：")) != "" {
		return false
	}
	return true
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

// heading classifies a line as a section heading, returning its text and
// a prominence bonus.
func heading(s string) (string, float64, bool) {
	if m := markdownHeadingRe.FindStringSubmatch(s); m != nil {
		return m[2], 15, true
	}
	if m := numberedRe.FindStringSubmatch(s); m != nil {
		rest := m[2]
		if wordCount(rest) <= 3 && !strings.HasSuffix(rest, ".") {
			return strings.TrimRight(rest, ":："), 10, true
		}
		return "", 0, false
	}
	if stepRe.MatchString(s) || bulletRe.MatchString(s) {
		return "", 0, false
	}
	if wordCount(s) <= 8 && isAllCaps(s) {
		return strings.TrimRight(s, ":："), 8, true
	}
	if (strings.HasSuffix(s, ":") || strings.HasSuffix(s, "：")) && wordCount(s) <= 6 {
		return strings.TrimSpace(strings.TrimRight(s, ":：")), 5, true
	}
	return "", 0, false
}

func sectionProposals(lines []line, topicLine, textLen int) ([]proposal, map[string]bool) {
	var out []proposal
	terms := map[string]bool{}
	for _, l := range lines {
		if l.index == topicLine {
			continue
		}
		h, bonus, ok := heading(l.text)
		h = strings.TrimSpace(h)
		if !ok || h == "" {
			continue
		}
		terms[strings.ToLower(h)] = true
		out = append(out, proposal{
			spec: fieldspec.Spec{
				Name:        truncateRunes(h, maxNameRunes),
				Mode:        fieldspec.ModeKeyword,
				Keywords:    []string{h},
				Description: "Section: " + h,
			},
			category:  CategorySection,
			relevance: 50 + bonus + positionBonus(l.start, textLen),
			pos:       l.start,
		})
	}
	return out, terms
}

func stepProposals(lines []line, textLen int) []proposal {
	var out []proposal
	n := 0
	for _, l := range lines {
		var rest string
		switch {
		case stepRe.MatchString(l.text):
			rest = stepRe.FindStringSubmatch(l.text)[1]
		case numberedRe.MatchString(l.text):
			r := numberedRe.FindStringSubmatch(l.text)[2]
			if wordCount(r) < 4 && !strings.HasSuffix(r, ".") {
				continue
			}
			rest = r
		case bulletRe.MatchString(l.text):
			r := bulletRe.FindStringSubmatch(l.text)[1]
			if wordCount(r) < 3 {
				continue
			}
			rest = r
		default:
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			continue
		}
		n++
		out = append(out, proposal{
			spec: fieldspec.Spec{
				Name:        fmt.Sprintf("Step %d", n),
				Mode:        fieldspec.ModeRegex,
				Pattern:     `(` + regexp2.Escape(rest) + `)`,
				Description: truncateRunes(rest, maxNameRunes),
			},
			category:  CategoryStep,
			relevance: 40 + positionBonus(l.start, textLen),
			pos:       l.start,
		})
	}
	return out
}
