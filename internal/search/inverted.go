package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// BackendMemory is the name of the in-process inverted index backend.
const BackendMemory = "memory"

// posting records that a term occurs in one field of one word.
type posting struct {
	doc   int32
	field uint8
}

// InvertedIndex is an immutable in-memory index over word records.
//
// A document's score for a query is the sum, over query terms and fields, of
// weight(field) * match * idf(term), where match is 1 for an exact term and
// the prefix weight when the query term is a strict prefix of the indexed
// term. Only the best match per (query term, document, field) counts.
type InvertedIndex struct {
	words        []store.Word
	weights      []float64
	prefixWeight float64

	postings map[string][]posting
	terms    []string // sorted keys of postings, for prefix scans
	df       map[string]int
}

// InvertedBuilder builds InvertedIndex values with a fixed field configuration.
type InvertedBuilder struct {
	fields       []Field
	weights      []float64
	prefixWeight float64
}

// NewInvertedBuilder validates weights and returns a builder. Fields are
// scored in name order so float sums are reproducible.
func NewInvertedBuilder(weights FieldWeights, prefixWeight float64) (*InvertedBuilder, error) {
	fields, w, err := orderedFields(weights)
	if err != nil {
		return nil, err
	}
	if prefixWeight < 0 || math.IsNaN(prefixWeight) {
		return nil, errors.ValidationError(fmt.Sprintf("prefix weight must be >= 0, got %v", prefixWeight), nil)
	}
	return &InvertedBuilder{fields: fields, weights: w, prefixWeight: prefixWeight}, nil
}

// Backend returns BackendMemory.
func (b *InvertedBuilder) Backend() string { return BackendMemory }

// Build indexes words. The input slice is copied.
func (b *InvertedBuilder) Build(ctx context.Context, words []store.Word) (Index, error) {
	idx := &InvertedIndex{
		words:        append([]store.Word(nil), words...),
		weights:      b.weights,
		prefixWeight: b.prefixWeight,
		postings:     make(map[string][]posting),
		df:           make(map[string]int),
	}

	for doc, w := range idx.words {
		if doc%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		seenInDoc := make(map[string]struct{})
		for fi, f := range b.fields {
			seenInField := make(map[string]struct{})
			for _, term := range Analyze(fieldText(w, f)) {
				if _, ok := seenInField[term]; ok {
					continue
				}
				seenInField[term] = struct{}{}
				idx.postings[term] = append(idx.postings[term], posting{doc: int32(doc), field: uint8(fi)})

				if _, ok := seenInDoc[term]; !ok {
					seenInDoc[term] = struct{}{}
					idx.df[term]++
				}
			}
		}
	}

	idx.terms = make([]string, 0, len(idx.postings))
	for t := range idx.postings {
		idx.terms = append(idx.terms, t)
	}
	sort.Strings(idx.terms)

	return idx, nil
}

// Len returns the number of indexed words.
func (x *InvertedIndex) Len() int { return len(x.words) }

// Close is a no-op; the index is garbage collected.
func (x *InvertedIndex) Close() error { return nil }

// Search scores every word matching at least one term.
func (x *InvertedIndex) Search(ctx context.Context, terms []string) ([]SearchResult, error) {
	nf := len(x.weights)
	scores := make(map[int32]float64)
	var order []int32

	for _, q := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// best[doc][field] for this query term
		best := make(map[int32][]float64)
		var touched []int32

		visit := func(term string, match float64) {
			contrib := match * x.idf(term)
			for _, p := range x.postings[term] {
				row, ok := best[p.doc]
				if !ok {
					row = make([]float64, nf)
					best[p.doc] = row
					touched = append(touched, p.doc)
				}
				if contrib > row[p.field] {
					row[p.field] = contrib
				}
			}
		}

		start := sort.SearchStrings(x.terms, q)
		for i := start; i < len(x.terms) && strings.HasPrefix(x.terms[i], q); i++ {
			if x.terms[i] == q {
				visit(q, 1)
			} else if x.prefixWeight > 0 {
				visit(x.terms[i], x.prefixWeight)
			}
		}

		for _, doc := range touched {
			var s float64
			for fi, v := range best[doc] {
				s += x.weights[fi] * v
			}
			if _, ok := scores[doc]; !ok {
				order = append(order, doc)
			}
			scores[doc] += s
		}
	}

	results := make([]SearchResult, len(order))
	for i, doc := range order {
		results[i] = SearchResult{Word: x.words[doc], Score: scores[doc]}
	}
	return results, nil
}

// idf returns 1 + ln(N/df) for term.
func (x *InvertedIndex) idf(term string) float64 {
	df := x.df[term]
	if df == 0 {
		return 0
	}
	return 1 + math.Log(float64(len(x.words))/float64(df))
}

// orderedFields validates weights and returns fields sorted by name with
// their weights.
func orderedFields(weights FieldWeights) ([]Field, []float64, error) {
	if len(weights) == 0 {
		weights = DefaultFieldWeights()
	}

	fields := make([]Field, 0, len(weights))
	for f, w := range weights {
		if !validField(f) {
			return nil, nil, errors.New(errors.ErrCodeInvalidField,
				fmt.Sprintf("unknown search field %q (want %q or %q)", f, FieldWord, FieldSentence), nil)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, nil, errors.ValidationError(fmt.Sprintf("field %q weight must be a finite value >= 0, got %v", f, w), nil)
		}
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i] = weights[f]
	}
	return fields, out, nil
}
