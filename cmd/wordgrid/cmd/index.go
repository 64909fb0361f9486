package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/index"
	"github.com/Aman-CERP/wordgrid/internal/profiling"
	"github.com/Aman-CERP/wordgrid/internal/ui"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	tolerance  float64
	boundaries string
	workers    int
	noTUI      bool
	profile    profiling.Options
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: "Extract and store the words of a document",
		Long: `Decode every page of a document, cluster its text fragments into rows,
split rows into words and replace the document's stored word set.

Supported formats: .pdf and the .json fragment format.

Pages that fail to decode are skipped and reported. The stored word set is
replaced only when the run completes; an interrupted or failed run leaves
the previous words in place.`,
		Example: `  wordgrid index report.pdf
  wordgrid index scan.json --tolerance 2.5
  wordgrid index invoice.pdf --boundaries rows.yaml --no-tui
  wordgrid index big.pdf --cpuprofile cpu.prof --memprofile heap.prof`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tolerance *float64
			if cmd.Flags().Changed("tolerance") {
				tolerance = &opts.tolerance
			}
			return runIndex(cmd.Context(), cmd, args[0], tolerance, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", 0, "Fixed row tolerance in viewport units (default: derived per page)")
	cmd.Flags().StringVar(&opts.boundaries, "boundaries", "", "YAML file of manual row cut-lines per page")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Pages decoded in parallel (default: indexing.workers)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain progress output even on a terminal")
	cmd.Flags().StringVar(&opts.profile.CPUPath, "cpuprofile", "", "Write a CPU profile of the run to this file")
	cmd.Flags().StringVar(&opts.profile.HeapPath, "memprofile", "", "Write a heap profile after the run to this file")
	cmd.Flags().StringVar(&opts.profile.TracePath, "trace", "", "Write an execution trace of the run to this file")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, source string, tolerance *float64, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc, err := runnerConfig(cfg, tolerance, opts.boundaries, opts.workers)
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithDocument(sess.paths.Source)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		Paths:    sess.paths,
		Run:      rc,
		Store:    sess.store,
		Renderer: renderer,
		Metrics:  sess.metrics,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	prof, err := profiling.Start(opts.profile)
	if err != nil {
		return err
	}
	result, err := coord.Reindex(ctx)
	if stopErr := prof.Stop(); stopErr != nil {
		slog.Warn("profile_write_failed", slog.String("error", stopErr.Error()))
	}
	if opts.profile.Enabled() {
		slog.Info("index_profiled", slog.String("memory", profiling.MemSummary()))
	}
	if err != nil {
		slog.Error("index_failed", errors.LogAttrs(err)...)
		return err
	}

	slog.Info("index_command_complete",
		slog.String("document", sess.paths.DocumentID),
		slog.String("run_id", result.RunID),
		slog.Int("words", result.Words))
	return nil
}
