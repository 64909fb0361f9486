// Package search builds a field-weighted inverted index over word records and
// answers ranked queries with a deterministic order.
package search

import (
	"context"

	"github.com/Aman-CERP/wordgrid/internal/store"
)

// Field is a textual field of a word record that takes part in scoring.
type Field string

const (
	// FieldWord is the token itself.
	FieldWord Field = "word"
	// FieldSentence is the running sentence the token belongs to.
	FieldSentence Field = "sentence"
)

// FieldWeights maps each scored field to its boost.
type FieldWeights map[Field]float64

// DefaultFieldWeights returns word=10, sentence=5.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{FieldWord: 10, FieldSentence: 5}
}

// DefaultPrefixWeight scales matches where the query term is a strict prefix
// of the indexed term.
const DefaultPrefixWeight = 0.5

// SearchResult is a word with its relevance score.
type SearchResult struct {
	Word  store.Word `json:"word"`
	Score float64    `json:"score"`
}

// SearchOptions configures a query.
type SearchOptions struct {
	// Limit caps the number of results. Zero uses the engine default.
	Limit int

	// Page keeps only results on this page. Zero keeps all pages.
	Page uint32
}

// Index is an immutable, built search structure. Implementations must be
// safe for concurrent Search calls.
type Index interface {
	// Search returns every word matching at least one of terms, unsorted.
	// terms are already analyzed.
	Search(ctx context.Context, terms []string) ([]SearchResult, error)

	// Len returns the number of indexed words.
	Len() int

	// Close releases resources.
	Close() error
}

// IndexBuilder builds an Index from a snapshot of words. Building is a pure
// function of the input.
type IndexBuilder interface {
	Build(ctx context.Context, words []store.Word) (Index, error)
	Backend() string
}

// fieldText returns the text a word contributes to field.
func fieldText(w store.Word, f Field) string {
	switch f {
	case FieldWord:
		return w.Text
	case FieldSentence:
		return w.Sentence
	}
	return ""
}

// validField reports whether f names a scored textual field.
func validField(f Field) bool {
	return f == FieldWord || f == FieldSentence
}
