// Package csvexport writes the review (validation) list of low-confidence
// fields as CSV or XLSX.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docfields/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the review list header row.
var columns = []string{
	"filename",
	"field_name",
	"extracted_value",
	"confidence",
}

// Writer wraps csv.Writer for exporting review lists.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteResults writes one row per low-confidence field of each result.
func (w *Writer) WriteResults(results []*domain.StructuredResult) error {
	for _, row := range Rows(results) {
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// WriteCSV writes a complete review list (BOM, header, rows) to out.
func WriteCSV(out io.Writer, results []*domain.StructuredResult) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteResults(results); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Rows converts results to review list rows. A missing value is an empty cell.
func Rows(results []*domain.StructuredResult) [][]string {
	var rows [][]string
	for _, res := range results {
		for i := range res.LowConfidenceFields {
			f := &res.LowConfidenceFields[i]
			value := ""
			if f.Value != nil {
				value = *f.Value
			}
			rows = append(rows, []string{res.Filename, f.Name, value, formatConfidence(f.Confidence)})
		}
	}
	return rows
}

// HasRows reports whether any result has a field to review.
func HasRows(results []*domain.StructuredResult) bool {
	for _, res := range results {
		if len(res.LowConfidenceFields) > 0 {
			return true
		}
	}
	return false
}

func formatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// BuildFilename returns a sanitized review list filename.
// Format: {sanitized_name}_review_{YYYY-MM-DD}.{ext}
func BuildFilename(name, ext string) string {
	return fmt.Sprintf("%s_review_%s.%s", SanitizeFilename(name), time.Now().Format("2006-01-02"), ext)
}
