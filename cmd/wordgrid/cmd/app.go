package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/Aman-CERP/wordgrid/internal/config"
	"github.com/Aman-CERP/wordgrid/internal/document"
	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/index"
	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
)

// session holds the per-document resources a command works with.
type session struct {
	cfg     *config.Config
	paths   index.Paths
	store   *store.SQLiteWordStore
	engine  *search.Engine
	metrics *telemetry.Metrics
}

// openSession resolves the document's data files, opens its word store and
// creates an empty search engine.
func openSession(cfg *config.Config, source string) (*session, error) {
	paths, err := index.ResolvePaths(cfg.Indexing.DataDir, source)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Indexing.DataDir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeStoreWrite,
			fmt.Sprintf("failed to create data directory %s: %v", cfg.Indexing.DataDir, err), err)
	}

	ws, err := store.NewSQLiteWordStore(paths.Store)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewMetrics()
	engine, err := newEngine(cfg, metrics)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}

	slog.Debug("session_opened",
		slog.String("document", paths.DocumentID),
		slog.String("store", paths.Store),
		slog.String("backend", engine.Stats().Backend))

	return &session{cfg: cfg, paths: paths, store: ws, engine: engine, metrics: metrics}, nil
}

func newEngine(cfg *config.Config, metrics *telemetry.Metrics) (*search.Engine, error) {
	builder, err := search.NewBuilder(cfg.SearchBuilderConfig())
	if err != nil {
		return nil, err
	}
	return search.NewEngine(builder,
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithCacheSize(cfg.Search.CacheSize),
		search.WithMetrics(metrics),
		search.WithLogger(slog.Default()))
}

func (s *session) Close() error {
	engineErr := s.engine.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return engineErr
}

// requireIndexed fails with a hint when the document has never been indexed.
func (s *session) requireIndexed(ctx context.Context) error {
	runID, err := s.store.GetState(ctx, store.StateKeyRunID)
	if err != nil {
		return err
	}
	if runID == "" {
		return errors.IndexNotBuiltError().WithDetail("document", s.paths.Source)
	}
	return nil
}

// loadEngine builds the search index from the stored word set.
func (s *session) loadEngine(ctx context.Context) error {
	if err := s.requireIndexed(ctx); err != nil {
		return err
	}
	words, err := s.store.All(ctx)
	if err != nil {
		return err
	}
	return s.engine.Build(ctx, words)
}

// runnerConfig builds the indexing run settings from cfg. A non-nil
// tolerance overrides the configured one and must be finite and >= 0; a
// non-empty boundaries path overrides indexing.boundaries_file.
func runnerConfig(cfg *config.Config, tolerance *float64, boundaries string, workers int) (index.RunnerConfig, error) {
	rc := index.RunnerConfig{
		Clustering: cfg.LayoutConfig(),
		Tolerance:  cfg.Clustering.Tolerance,
		Workers:    cfg.Indexing.Workers,
	}
	if tolerance != nil {
		if t := *tolerance; t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return index.RunnerConfig{}, errors.ToleranceConfigError(t)
		}
		rc.Tolerance = tolerance
	}
	if workers > 0 {
		rc.Workers = workers
	}

	if boundaries == "" {
		boundaries = cfg.Indexing.BoundariesFile
	}
	if boundaries != "" {
		b, err := document.LoadBoundaries(boundaries)
		if err != nil {
			return index.RunnerConfig{}, err
		}
		rc.Boundaries = b
	}
	return rc, nil
}

// serveMetrics starts the Prometheus listener when an address is configured.
// It stops when ctx is done.
func serveMetrics(ctx context.Context, addr string, metrics *telemetry.Metrics) {
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, slog.Default()); err != nil {
			slog.Warn("metrics listener stopped", slog.String("addr", addr), slog.String("error", err.Error()))
		}
	}()
}
