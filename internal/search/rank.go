package search

import "sort"

// Rank sorts results by descending score, then ascending page, row and
// index in row. Equal scores are common for short terms, so the positional
// tie-break is what makes traversal order predictable.
func Rank(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return less(results[i], results[j])
	})
}

// less implements the total order used by Rank.
func less(a, b SearchResult) bool {
	// Primary: higher score ranks first
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	// Tie-break: document position
	if a.Word.Page != b.Word.Page {
		return a.Word.Page < b.Word.Page
	}
	if a.Word.Row != b.Word.Row {
		return a.Word.Row < b.Word.Row
	}
	return a.Word.IndexInRow < b.Word.IndexInRow
}

// FilterByPage keeps results on page, preserving order. Page zero keeps all.
func FilterByPage(results []SearchResult, page uint32) []SearchResult {
	if page == 0 {
		return results
	}
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Word.Page == page {
			out = append(out, r)
		}
	}
	return out
}
