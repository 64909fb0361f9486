package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// FormatSearchResults formats ranked words as markdown.
func FormatSearchResults(query string, page uint32, results []search.SearchResult) string {
	if len(results) == 0 {
		if page > 0 {
			return fmt.Sprintf("No words found for \"%s\" on page %d", query, page)
		}
		return fmt.Sprintf("No words found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	if page > 0 {
		fmt.Fprintf(&sb, "Page filter: %d\n\n", page)
	}
	writeCount(&sb, len(results), "result")

	for i, r := range results {
		formatWord(&sb, i+1, r.Word)
		fmt.Fprintf(&sb, " (score: %.2f)\n", r.Score)
		formatSentence(&sb, r.Word.Sentence)
	}

	return sb.String()
}

// FormatWords formats a prefix lookup as markdown.
func FormatWords(prefix string, words []store.Word) string {
	if len(words) == 0 {
		return fmt.Sprintf("No words start with \"%s\"", prefix)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Words starting with \"%s\"\n\n", prefix)
	writeCount(&sb, len(words), "word")

	for i, w := range words {
		formatWord(&sb, i+1, w)
		sb.WriteString("\n")
		formatSentence(&sb, w.Sentence)
	}

	return sb.String()
}

func writeCount(sb *strings.Builder, n int, noun string) {
	fmt.Fprintf(sb, "Found %d %s", n, noun)
	if n != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")
}

// formatWord writes the header line for one word without a trailing newline.
func formatWord(sb *strings.Builder, num int, w store.Word) {
	fmt.Fprintf(sb, "### %d. `%s` page %d, row %d, word %d [%.1f, %.1f, %.1f, %.1f]",
		num, w.Text, w.Page, w.Row, w.IndexInRow,
		w.BBox[0], w.BBox[1], w.BBox[2], w.BBox[3])
}

func formatSentence(sb *strings.Builder, sentence string) {
	if sentence == "" {
		sb.WriteString("\n")
		return
	}
	fmt.Fprintf(sb, "> %s\n\n", sentence)
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToWordOutput converts a stored word to the tool output format.
func ToWordOutput(w store.Word) WordOutput {
	return WordOutput{
		Text:       w.Text,
		Page:       w.Page,
		Row:        w.Row,
		IndexInRow: w.IndexInRow,
		BBox:       w.BBox,
		Sentence:   w.Sentence,
	}
}

// ToSearchResultOutput converts a ranked result to the tool output format.
func ToSearchResultOutput(r search.SearchResult) WordOutput {
	out := ToWordOutput(r.Word)
	out.Score = r.Score
	return out
}
