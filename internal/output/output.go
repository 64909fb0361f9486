// Package output provides consistent CLI output formatting for words,
// search results and index statistics.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// maxSentence is the display width of the sentence column.
const maxSentence = 60

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Words prints words as an aligned table in the order given.
func (w *Writer) Words(words []store.Word) error {
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PAGE\tROW\tPOS\tWORD\tBBOX\tSENTENCE")
	for _, word := range words {
		writeWordRow(tw, word, "")
	}
	return tw.Flush()
}

// SearchResults prints ranked results with their scores.
func (w *Writer) SearchResults(query string, results []search.SearchResult) error {
	if len(results) == 0 {
		w.Statusf("", "No words found for %q", query)
		return nil
	}

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SCORE\tPAGE\tROW\tPOS\tWORD\tBBOX\tSENTENCE")
	for _, r := range results {
		writeWordRow(tw, r.Word, fmt.Sprintf("%.3f\t", r.Score))
	}
	return tw.Flush()
}

func writeWordRow(tw io.Writer, word store.Word, prefix string) {
	b := word.BBox
	_, _ = fmt.Fprintf(tw, "%s%d\t%d\t%d\t%s\t%.1f,%.1f,%.1f,%.1f\t%s\n",
		prefix, word.Page, word.Row, word.IndexInRow, word.Text,
		b[0], b[1], b[2], b[3], Truncate(word.Sentence, maxSentence))
}

// KeyValues prints pairs sorted by key.
func (w *Writer) KeyValues(pairs map[string]string) error {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v := pairs[k]
		if v == "" {
			v = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", k, v)
	}
	return tw.Flush()
}

// List prints one value per line.
func (w *Writer) List(values []string) {
	for _, v := range values {
		_, _ = fmt.Fprintln(w.out, v)
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
