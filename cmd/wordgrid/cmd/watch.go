package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/config"
	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/index"
	"github.com/Aman-CERP/wordgrid/internal/output"
	"github.com/Aman-CERP/wordgrid/internal/ui"
	"github.com/Aman-CERP/wordgrid/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	boundaries   string
	workers      int
	metricsAddr  string
	forcePolling bool
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-index a document whenever it changes",
		Long: `Index a document, then watch it and re-index after every change.

Changes to the boundaries file or the config file reload the run settings
before re-indexing. If the document is deleted the last index is kept.
Bursts of events are coalesced, so an editor saving several times in a row
triggers one run.`,
		Example: `  wordgrid watch scan.json
  wordgrid watch invoice.pdf --boundaries rows.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.boundaries, "boundaries", "", "YAML file of manual row cut-lines per page")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Pages decoded in parallel (default: indexing.workers)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus listen address (default: server.metrics_addr)")
	cmd.Flags().BoolVar(&opts.forcePolling, "poll", false, "Poll for changes instead of using filesystem notifications")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, source string, opts watchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := runnerConfig(cfg, nil, opts.boundaries, opts.workers)
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Server.MetricsAddr
	}
	serveMetrics(ctx, addr, sess.metrics)

	out := output.New(cmd.OutOrStdout())
	renderer := ui.NewPlainRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithDocument(sess.paths.Source)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		Paths:    sess.paths,
		Run:      rc,
		Store:    sess.store,
		Engine:   sess.engine,
		Renderer: renderer,
		Metrics:  sess.metrics,
		Logger:   slog.Default(),
		Reload: func() (index.RunnerConfig, error) {
			next, err := loadConfig()
			if err != nil {
				return index.RunnerConfig{}, err
			}
			return runnerConfig(next, nil, opts.boundaries, opts.workers)
		},
	})
	if err != nil {
		return err
	}

	if _, err := coord.Reindex(ctx); err != nil {
		out.Warningf("initial index failed: %s", err.Error())
		slog.Warn("watch_initial_index_failed", errors.LogAttrs(err)...)
		if n, loadErr := coord.LoadFromStore(ctx); loadErr == nil && n > 0 {
			out.Statusf("", "Serving previous index (%d words)", n)
		}
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{ForcePolling: opts.forcePolling})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	if err := w.Watch(sess.paths.Source, watcher.RoleDocument); err != nil {
		return err
	}
	boundaries := opts.boundaries
	if boundaries == "" {
		boundaries = cfg.Indexing.BoundariesFile
	}
	if boundaries != "" {
		if err := w.Watch(boundaries, watcher.RoleBoundaries); err != nil {
			return err
		}
	}
	for _, path := range configFiles() {
		if err := w.Watch(path, watcher.RoleConfig); err != nil {
			return err
		}
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Start(ctx) }()

	out.Statusf("", "Watching %s (%s)", sess.paths.Source, w.WatcherType())
	slog.Info("watch_started",
		slog.String("document", sess.paths.DocumentID),
		slog.String("watcher", w.WatcherType()))

	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := coord.HandleEvents(ctx, batch); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				out.Warningf("re-index failed, keeping previous index: %s", err.Error())
				slog.Warn("watch_reindex_failed", errors.LogAttrs(err)...)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// configFiles returns the existing config files that affect this process.
func configFiles() []string {
	var paths []string
	if p := config.GetUserConfigPath(); fileExists(p) {
		paths = append(paths, p)
	}
	if configFile != "" {
		if fileExists(configFile) {
			paths = append(paths, configFile)
		}
	} else if wd, err := os.Getwd(); err == nil {
		if p := filepath.Join(wd, config.ProjectConfigName); fileExists(p) {
			paths = append(paths, p)
		}
	}
	return paths
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
