// Package output provides formatters for evidence listings.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// EvidenceRow is one canonical match of a variant lookup.
type EvidenceRow struct {
	Query        string
	Matched      string
	Canonical    string
	ArticleCount int
	URL          string
}

// TabWriter writes evidence rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#Query",
			"Matched",
			"Canonical",
			"Article_count",
			"Link",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row. Empty fields are written as "-".
func (tw *TabWriter) Write(r EvidenceRow) error {
	values := []string{
		orDash(r.Query),
		orDash(r.Matched),
		orDash(r.Canonical),
		strconv.Itoa(r.ArticleCount),
		orDash(r.URL),
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
