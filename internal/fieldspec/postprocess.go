package fieldspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	amountRe  = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	isoDateRe = regexp.MustCompile(`(\d{4})\s*[-/.年]\s*(\d{1,2})\s*[-/.月]\s*(\d{1,2})\s*日?`)
)

var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan. 2, 2006",
}

// Apply runs the post-processor on value. A value it cannot parse is
// returned unchanged.
func (p PostProcess) Apply(value string) string {
	switch p {
	case PostAmountNormalize:
		return normalizeAmount(value)
	case PostDateNormalize:
		return normalizeDate(value)
	case PostTrim:
		return strings.TrimSpace(value)
	default:
		return value
	}
}

func normalizeAmount(value string) string {
	m := amountRe.FindString(value)
	if m == "" {
		return value
	}
	return strings.ReplaceAll(m, ",", "")
}

func normalizeDate(value string) string {
	v := strings.TrimSpace(value)
	if m := isoDateRe.FindStringSubmatch(v); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC); t.Month() == time.Month(mo) && t.Day() == d {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
		}
		return value
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return value
}
