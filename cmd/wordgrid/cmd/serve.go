package cmd

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Serve an indexed document to MCP clients over stdio",
		Long: `Start a Model Context Protocol server over stdio for one indexed document.

Tools: search_words, words_by_prefix, list_distinct, index_status.

Stdout carries JSON-RPC only; logs go to ~/.wordgrid/logs/ (and stderr
with --debug). When server.metrics_addr or --metrics-addr is set, Prometheus
metrics are served at /metrics on that address.`,
		Example: `  wordgrid serve report.pdf
  wordgrid serve report.pdf --metrics-addr 127.0.0.1:9464`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), args[0], metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (default: server.metrics_addr)")

	return cmd
}

func runServe(ctx context.Context, source, metricsAddr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}

	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.loadEngine(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveMetrics(ctx, metricsAddr, sess.metrics)

	srv, err := mcp.NewServer(sess.engine, sess.store,
		mcp.WithLogger(slog.Default()),
		mcp.WithMetrics(sess.metrics),
		mcp.WithDocumentID(sess.paths.DocumentID))
	if err != nil {
		return err
	}

	slog.Info("serve_started",
		slog.String("document", sess.paths.DocumentID),
		slog.Int("words", sess.engine.Stats().Words))
	if err := srv.Serve(ctx, "stdio"); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
