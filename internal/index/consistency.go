package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyStateCount means the recorded word_count differs from the
	// stored rows.
	InconsistencyStateCount InconsistencyType = iota
	// InconsistencyIndexStale means the search index holds a different number
	// of words than the store.
	InconsistencyIndexStale
	// InconsistencyIndexMissing means the store has words but no index is built.
	InconsistencyIndexMissing
)

// String returns a short machine-friendly name.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyStateCount:
		return "state_count"
	case InconsistencyIndexStale:
		return "index_stale"
	case InconsistencyIndexMissing:
		return "index_missing"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	Details string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Stored is the number of words in the store.
	Stored int
	// Indexed is the number of words in the search index.
	Indexed         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// OK reports whether no issues were found.
func (r *CheckResult) OK() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker compares the word store, its run metadata and the
// search engine built from it.
type ConsistencyChecker struct {
	store  store.WordStore
	engine *search.Engine
}

// NewConsistencyChecker creates a checker. engine may be nil, in which case
// only the store is checked.
func NewConsistencyChecker(ws store.WordStore, engine *search.Engine) *ConsistencyChecker {
	return &ConsistencyChecker{store: ws, engine: engine}
}

// Check compares counts across the store, the state table and the engine.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	result := &CheckResult{}

	stored, err := c.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored words: %w", err)
	}
	result.Stored = stored

	recorded, err := c.store.GetState(ctx, store.StateKeyWordCount)
	if err != nil {
		return nil, fmt.Errorf("failed to read word_count: %w", err)
	}
	if recorded != "" {
		if n, err := strconv.Atoi(recorded); err != nil || n != stored {
			result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
				Type:    InconsistencyStateCount,
				Details: fmt.Sprintf("state word_count=%s, stored=%d", recorded, stored),
			})
		}
	}

	if c.engine != nil {
		stats := c.engine.Stats()
		result.Indexed = stats.Words
		switch {
		case !stats.Built && stored > 0:
			result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
				Type:    InconsistencyIndexMissing,
				Details: fmt.Sprintf("%d stored words, no index", stored),
			})
		case stats.Built && stats.Words != stored:
			result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
				Type:    InconsistencyIndexStale,
				Details: fmt.Sprintf("index has %d words, store has %d", stats.Words, stored),
			})
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Repair rebuilds the search index from the store when the index is missing
// or stale, and rewrites word_count when it disagrees with the store.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyIndexMissing, InconsistencyIndexStale:
			if c.engine == nil {
				continue
			}
			words, err := c.store.All(ctx)
			if err != nil {
				return fmt.Errorf("failed to load stored words: %w", err)
			}
			if err := c.engine.Build(ctx, words); err != nil {
				return fmt.Errorf("failed to rebuild index: %w", err)
			}
			slog.Info("consistency_repair_index", slog.Int("words", len(words)))

		case InconsistencyStateCount:
			stored, err := c.store.Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count stored words: %w", err)
			}
			if err := c.store.SetState(ctx, map[string]string{store.StateKeyWordCount: strconv.Itoa(stored)}); err != nil {
				return fmt.Errorf("failed to rewrite word_count: %w", err)
			}
			slog.Info("consistency_repair_state", slog.Int("words", stored))
		}
	}
	return nil
}
