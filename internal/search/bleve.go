package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/wordgrid/internal/store"
)

const (
	// BackendBleve is the name of the bleve-backed index.
	BackendBleve = "bleve"

	// wordAnalyzerName is the bleve analyzer for word and sentence fields.
	// Field text is run through Analyze before indexing, so it only splits
	// on the spaces between terms.
	wordAnalyzerName = "wordgrid_words"

	bleveBatchSize = 1000
)

// bleveDoc is the document shape stored in bleve.
type bleveDoc struct {
	Word     string `json:"word"`
	Sentence string `json:"sentence"`
}

// BleveBuilder builds in-memory bleve indexes with per-field boosts.
type BleveBuilder struct {
	fields       []Field
	weights      []float64
	prefixWeight float64
}

// NewBleveBuilder validates weights and returns a builder.
func NewBleveBuilder(weights FieldWeights, prefixWeight float64) (*BleveBuilder, error) {
	fields, w, err := orderedFields(weights)
	if err != nil {
		return nil, err
	}
	return &BleveBuilder{fields: fields, weights: w, prefixWeight: prefixWeight}, nil
}

// Backend returns BackendBleve.
func (b *BleveBuilder) Backend() string { return BackendBleve }

// Build indexes words into a fresh memory-only bleve index. Document IDs are
// emission ordinals.
func (b *BleveBuilder) Build(ctx context.Context, words []store.Word) (Index, error) {
	m, err := newWordMapping()
	if err != nil {
		return nil, err
	}

	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for i, w := range words {
		doc := bleveDoc{Word: analyzed(w.Text), Sentence: analyzed(w.Sentence)}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index word %d: %w", i, err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := ctx.Err(); err != nil {
				_ = idx.Close()
				return nil, err
			}
			if err := idx.Batch(batch); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	return &BleveIndex{
		index:        idx,
		words:        append([]store.Word(nil), words...),
		fields:       b.fields,
		weights:      b.weights,
		prefixWeight: b.prefixWeight,
	}, nil
}

func newWordMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(wordAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add word analyzer: %w", err)
	}
	m.DefaultAnalyzer = wordAnalyzerName
	return m, nil
}

// analyzed joins the Analyze terms of text so bleve sees the same terms as
// the queries do.
func analyzed(text string) string {
	return strings.Join(Analyze(text), " ")
}

// BleveIndex is an Index backed by a memory-only bleve index.
type BleveIndex struct {
	index        bleve.Index
	words        []store.Word
	fields       []Field
	weights      []float64
	prefixWeight float64
}

// Len returns the number of indexed words.
func (x *BleveIndex) Len() int { return len(x.words) }

// Close closes the bleve index.
func (x *BleveIndex) Close() error { return x.index.Close() }

// Search runs a disjunction of boosted term and prefix queries per field.
func (x *BleveIndex) Search(ctx context.Context, terms []string) ([]SearchResult, error) {
	if len(terms) == 0 || len(x.words) == 0 {
		return []SearchResult{}, nil
	}

	var clauses []query.Query
	for _, t := range terms {
		for i, f := range x.fields {
			if x.weights[i] == 0 {
				continue
			}
			tq := bleve.NewTermQuery(t)
			tq.SetField(string(f))
			tq.SetBoost(x.weights[i])
			clauses = append(clauses, tq)

			if x.prefixWeight > 0 {
				pq := bleve.NewPrefixQuery(t)
				pq.SetField(string(f))
				pq.SetBoost(x.weights[i] * x.prefixWeight)
				clauses = append(clauses, pq)
			}
		}
	}
	if len(clauses) == 0 {
		return []SearchResult{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(clauses...), len(x.words), 0, false)
	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ord, err := strconv.Atoi(hit.ID)
		if err != nil || ord < 0 || ord >= len(x.words) {
			continue
		}
		out = append(out, SearchResult{Word: x.words[ord], Score: hit.Score})
	}
	return out, nil
}
