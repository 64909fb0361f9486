package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/logging"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// DefaultCacheSize is the number of ranked query results kept in memory.
const DefaultCacheSize = 256

// Engine answers queries against the most recently built index.
//
// Queries hold a read lock for their whole duration; Build prepares the new
// index without the lock and only takes the write lock to swap it in, so an
// index is never modified or closed while a query is using it.
type Engine struct {
	builder    IndexBuilder
	maxResults int
	cacheSize  int
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	mu      sync.RWMutex
	index   Index
	builtAt time.Time
	cache   *lru.Cache[string, []SearchResult]
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMaxResults sets the default result limit. Zero means unlimited.
func WithMaxResults(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxResults = n
		}
	}
}

// WithCacheSize sets the query cache size. Zero disables caching.
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.cacheSize = n
		}
	}
}

// WithMetrics records query outcomes.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine with no index. Queries return ErrIndexNotBuilt
// until Build succeeds.
func NewEngine(builder IndexBuilder, opts ...EngineOption) (*Engine, error) {
	if builder == nil {
		return nil, fmt.Errorf("%w: index builder is required", ErrNilDependency)
	}

	e := &Engine{
		builder:    builder,
		maxResults: 50,
		cacheSize:  DefaultCacheSize,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.cacheSize > 0 {
		cache, err := lru.New[string, []SearchResult](e.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create query cache: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

// Build indexes words and atomically replaces the current index. On error
// the current index stays in service.
func (e *Engine) Build(ctx context.Context, words []store.Word) error {
	start := time.Now()

	idx, err := e.builder.Build(ctx, words)
	if err != nil {
		return errors.New(errors.ErrCodeSearchFailed, fmt.Sprintf("failed to build %s index: %v", e.builder.Backend(), err), err)
	}

	e.mu.Lock()
	old := e.index
	e.index = idx
	e.builtAt = time.Now()
	if e.cache != nil {
		e.cache.Purge()
	}
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("failed to close previous index", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("search index built",
		slog.String("backend", e.builder.Backend()),
		slog.Int("words", len(words)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Search returns ranked results for query.
//
// An empty or whitespace-only query yields an empty result without touching
// the index. Before the first successful Build the result is empty and the
// error matches errors.ErrIndexNotBuilt.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		e.metrics.QueryObserved(query, telemetry.QueryEmpty, 0, time.Since(start))
		return []SearchResult{}, nil
	}
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		e.metrics.QueryObserved(query, telemetry.QueryEmpty, 0, time.Since(start))
		return []SearchResult{}, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil {
		e.metrics.QueryObserved(query, telemetry.QueryNotBuilt, 0, time.Since(start))
		return []SearchResult{}, errors.IndexNotBuiltError()
	}

	key := strings.Join(terms, "\x00")
	ranked, ok := e.cached(key)
	if !ok {
		results, err := e.index.Search(ctx, terms)
		if err != nil {
			e.metrics.QueryObserved(query, telemetry.QueryError, 0, time.Since(start))
			return []SearchResult{}, errors.New(errors.ErrCodeSearchFailed, fmt.Sprintf("search %q failed: %v", query, err), err)
		}
		Rank(results)
		ranked = results
		if e.cache != nil {
			e.cache.Add(key, ranked)
		}
	}

	out := FilterByPage(ranked, opts.Page)
	limit := opts.Limit
	if limit <= 0 {
		limit = e.maxResults
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	// Cached slices are shared between callers.
	out = append([]SearchResult(nil), out...)

	e.metrics.QueryObserved(query, telemetry.QueryOK, len(out), time.Since(start))
	e.logger.Debug("search",
		slog.String("query", query),
		slog.Int("results", len(out)),
		slog.Bool("cached", ok),
		slog.Duration("duration", time.Since(start)))

	return out, nil
}

func (e *Engine) cached(key string) ([]SearchResult, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

// EngineStats describes the current index.
type EngineStats struct {
	Backend   string    `json:"backend"`
	Built     bool      `json:"built"`
	Words     int       `json:"words"`
	BuiltAt   time.Time `json:"built_at,omitempty"`
	CacheSize int       `json:"cache_entries"`
}

// Stats returns index statistics.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := EngineStats{Backend: e.builder.Backend(), Built: e.index != nil, BuiltAt: e.builtAt}
	if e.index != nil {
		s.Words = e.index.Len()
	}
	if e.cache != nil {
		s.CacheSize = e.cache.Len()
	}
	return s
}

// Close releases the current index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
