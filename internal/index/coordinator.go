package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/wordgrid/internal/document"
	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
	"github.com/Aman-CERP/wordgrid/internal/ui"
	"github.com/Aman-CERP/wordgrid/internal/watcher"
)

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// Paths locates the document and its data files.
	Paths Paths

	// Run is the template for each run. DocumentID and Source are filled
	// from Paths.
	Run RunnerConfig

	// Store receives the word set (required).
	Store store.WordStore

	// Engine is rebuilt after each successful run. Optional.
	Engine *search.Engine

	Renderer ui.Renderer
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger

	// Open opens the document. Defaults to document.Open.
	Open func(path string) (document.Decoder, error)

	// Reload re-reads run settings when the config or boundaries file
	// changes. Optional.
	Reload func() (RunnerConfig, error)
}

// Coordinator owns the lifecycle of one indexed document: exclusive runs,
// engine rebuilds and reacting to file changes.
type Coordinator struct {
	config CoordinatorConfig
	mu     sync.Mutex
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("word store is required")
	}
	if cfg.Open == nil {
		cfg.Open = document.Open
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{config: cfg}, nil
}

// Reindex runs the pipeline under the document's run lock and rebuilds the
// engine from the emitted words. On any failure the previous store
// contents and index stay in place.
func (c *Coordinator) Reindex(ctx context.Context) (*RunnerResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock := NewRunLock(c.config.Paths.Lock)
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	decoder, err := c.config.Open(c.config.Paths.Source)
	if err != nil {
		return nil, err
	}
	defer func() { _ = decoder.Close() }()

	runner, err := NewRunner(RunnerDependencies{
		Decoder:  decoder,
		Store:    c.config.Store,
		Renderer: c.config.Renderer,
		Metrics:  c.config.Metrics,
		Logger:   c.config.Logger,
	})
	if err != nil {
		return nil, err
	}

	cfg := c.config.Run
	cfg.DocumentID = c.config.Paths.DocumentID
	cfg.Source = c.config.Paths.Source

	result, err := runner.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if c.config.Engine != nil {
		if c.config.Renderer != nil {
			c.config.Renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageIndexing,
				Message: fmt.Sprintf("Building %s index...", c.config.Engine.Stats().Backend),
			})
		}
		start := time.Now()
		if err := c.config.Engine.Build(ctx, result.WordList); err != nil {
			return nil, err
		}
		c.config.Logger.Info("search_index_built",
			slog.String("document", cfg.DocumentID),
			slog.Int("words", result.Words),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	}

	return result, nil
}

// LoadFromStore builds the engine from the stored word set, so a server can
// answer queries without re-decoding the document.
func (c *Coordinator) LoadFromStore(ctx context.Context) (int, error) {
	if c.config.Engine == nil {
		return 0, nil
	}

	words, err := c.config.Store.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.config.Engine.Build(ctx, words); err != nil {
		return 0, err
	}
	return len(words), nil
}

// HandleEvents reacts to a debounced batch of watcher events. A change to
// the config or boundaries file reloads run settings first. A deleted
// document keeps the last good index.
func (c *Coordinator) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		c.config.Logger.Debug("watch_event",
			slog.String("path", e.Path),
			slog.String("role", e.Role.String()),
			slog.String("operation", e.Operation.String()))
	}

	if c.config.Reload != nil && (watcher.HasRole(events, watcher.RoleConfig) || watcher.HasRole(events, watcher.RoleBoundaries)) {
		cfg, err := c.config.Reload()
		if err != nil {
			// Keep the previous settings; a half-edited file should not stop the watch.
			c.config.Logger.Warn("reload failed, keeping previous settings", slog.String("error", err.Error()))
		} else {
			c.mu.Lock()
			c.config.Run = cfg
			c.mu.Unlock()
		}
	}

	for _, e := range events {
		if e.Role == watcher.RoleDocument && (e.Operation == watcher.OpDelete || e.Operation == watcher.OpRename) {
			c.config.Logger.Warn("document removed, keeping last index", slog.String("path", e.Path))
			return nil
		}
	}

	_, err := c.Reindex(ctx)
	return err
}
