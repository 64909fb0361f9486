// Package store persists a document's word records and run metadata.
// A store holds exactly one document's word set; re-indexing replaces it whole.
package store

import (
	"context"

	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

// Word is one token of a document with its position and running sentence.
// Words are created once per indexing run and never mutated.
type Word struct {
	// Text is the token as it appeared, punctuation attached.
	Text string `json:"text"`

	// Page is the 1-based page number.
	Page uint32 `json:"page"`

	// Row is the 1-based row number within the page, top to bottom.
	Row uint32 `json:"row"`

	// IndexInRow is the 1-based position within the row, left to right.
	IndexInRow uint32 `json:"index_in_row"`

	// BBox is the approximate word box in viewport coordinates.
	BBox geometry.BBox `json:"bbox"`

	// Sentence is every word since the last terminator, including this one.
	Sentence string `json:"sentence"`
}

// Field names accepted by ListDistinct.
const (
	FieldText       = "text"
	FieldPage       = "page"
	FieldRow        = "row"
	FieldIndexInRow = "index_in_row"
	FieldSentence   = "sentence"
)

// Fields lists every field accepted by ListDistinct.
var Fields = []string{FieldText, FieldPage, FieldRow, FieldIndexInRow, FieldSentence}

// State keys written after a successful run.
const (
	StateKeySource    = "source"
	StateKeyPageCount = "page_count"
	StateKeyWordCount = "word_count"
	StateKeyRunID     = "run_id"
	StateKeyIndexedAt = "indexed_at"
	StateKeySkipped   = "pages_skipped"
)

// WordStore persists one document's word set.
type WordStore interface {
	// ReplaceAll atomically swaps the stored word set for words. On failure
	// the previous set is left untouched.
	ReplaceAll(ctx context.Context, words []Word) error

	// QueryByWordPrefix returns words whose text starts with prefix, ignoring
	// case, in (page, row, indexInRow) order. limit <= 0 means no limit.
	QueryByWordPrefix(ctx context.Context, prefix string, limit int) ([]Word, error)

	// Count returns the number of stored words.
	Count(ctx context.Context) (int, error)

	// ListDistinct returns the distinct values of field in ascending order.
	ListDistinct(ctx context.Context, field string) ([]string, error)

	// All returns every word in emission order.
	All(ctx context.Context) ([]Word, error)

	// GetState and SetState are a minimal key/value store for run metadata.
	// GetState returns "" for a missing key.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, state map[string]string) error

	// Close releases resources.
	Close() error
}
