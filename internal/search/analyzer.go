package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Analyze splits text into index terms: NFC-normalized, case-folded runs of
// letters and digits. Punctuation separates terms and is dropped.
func Analyze(text string) []string {
	if text == "" {
		return nil
	}
	// Casers keep state and must not be shared between goroutines.
	folded := cases.Fold().String(norm.NFC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// uniqueTerms analyzes query and removes duplicate terms, keeping first order.
func uniqueTerms(query string) []string {
	terms := Analyze(query)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
