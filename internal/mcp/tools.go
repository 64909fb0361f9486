package mcp

import (
	"github.com/Aman-CERP/wordgrid/internal/geometry"
)

// SearchWordsInput defines the input schema for the search_words tool.
type SearchWordsInput struct {
	Query string `json:"query" jsonschema:"words to look for; matches the token or its sentence"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Page  int    `json:"page,omitempty" jsonschema:"only return words on this 1-based page, 0 for all pages"`
}

// WordsByPrefixInput defines the input schema for the words_by_prefix tool.
type WordsByPrefixInput struct {
	Prefix string `json:"prefix" jsonschema:"case-insensitive prefix of the word text"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of words, default 50"`
}

// ListDistinctInput defines the input schema for the list_distinct tool.
type ListDistinctInput struct {
	Field string `json:"field" jsonschema:"one of text, page, row, index_in_row, sentence"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// WordOutput is a located word as returned to clients.
type WordOutput struct {
	Text       string        `json:"text" jsonschema:"the token as it appears on the page"`
	Page       uint32        `json:"page" jsonschema:"1-based page number"`
	Row        uint32        `json:"row" jsonschema:"1-based row number, top to bottom"`
	IndexInRow uint32        `json:"index_in_row" jsonschema:"1-based position within the row"`
	BBox       geometry.BBox `json:"bbox" jsonschema:"approximate word box x0, y0, x1, y1 in viewport coordinates"`
	Sentence   string        `json:"sentence" jsonschema:"running sentence up to and including this word"`
	Score      float64       `json:"score,omitempty" jsonschema:"relevance score, search results only"`
}

// SearchWordsOutput defines the output schema for the search_words tool.
type SearchWordsOutput struct {
	Query   string       `json:"query"`
	Results []WordOutput `json:"results" jsonschema:"ranked words"`
}

// WordsOutput defines the output schema for the words_by_prefix tool.
type WordsOutput struct {
	Prefix string       `json:"prefix"`
	Words  []WordOutput `json:"words" jsonschema:"words in page, row, position order"`
}

// DistinctOutput defines the output schema for the list_distinct tool.
type DistinctOutput struct {
	Field  string   `json:"field"`
	Values []string `json:"values" jsonschema:"distinct values in ascending order"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Document DocumentInfo `json:"document"`
	Index    IndexInfo    `json:"index"`

	// Consistent is false when the store, run metadata and index disagree.
	Consistent bool     `json:"consistent"`
	Issues     []string `json:"issues,omitempty"`

	// RecentZeroResultQueries helps clients rephrase searches.
	RecentZeroResultQueries []string `json:"recent_zero_result_queries,omitempty"`
}

// DocumentInfo is the run metadata recorded by the last successful index run.
type DocumentInfo struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PageCount    int    `json:"page_count"`
	PagesSkipped string `json:"pages_skipped,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	IndexedAt    string `json:"indexed_at,omitempty"`
}

// IndexInfo describes the store and the search index.
type IndexInfo struct {
	Ready        bool   `json:"ready"`
	Backend      string `json:"backend"`
	StoredWords  int    `json:"stored_words"`
	IndexedWords int    `json:"indexed_words"`
	BuiltAt      string `json:"built_at,omitempty"`
	CacheEntries int    `json:"cache_entries"`
}
