package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/output"
	"github.com/Aman-CERP/wordgrid/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	page       int
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "Ranked word search over an indexed document",
		Long: `Search the stored words of a document. A word matches when the query
terms match the word itself or the sentence it belongs to; exact matches
outrank prefix matches and word matches outrank sentence matches.

Results are ordered by score, then page, row and position in row.`,
		Example: `  wordgrid search report.pdf revenue
  wordgrid search report.pdf "net revenue" -n 5 --page 3
  wordgrid search report.pdf total --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args[1:], " ")
			return runSearch(cmd.Context(), cmd, args[0], query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results (0 uses search.max_results)")
	cmd.Flags().IntVar(&opts.page, "page", 0, "Only show words on this page")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, source, query string, opts searchOptions) error {
	if opts.page < 0 {
		return errors.ValidationError("--page must be 0 (all pages) or a 1-based page number", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	start := time.Now()
	if err := sess.loadEngine(ctx); err != nil {
		return err
	}

	results, err := sess.engine.Search(ctx, query, search.SearchOptions{
		Limit: opts.limit,
		Page:  uint32(opts.page),
	})
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(results)
	}
	return out.SearchResults(query, results)
}

// wordsOptions holds CLI flags for words.
type wordsOptions struct {
	limit      int
	jsonOutput bool
}

func newWordsCmd() *cobra.Command {
	var opts wordsOptions

	cmd := &cobra.Command{
		Use:   "words <file> <prefix>",
		Short: "List stored words starting with a prefix",
		Long: `List the stored words whose text starts with prefix, ignoring case, in
reading order (page, row, position in row). Reads the word store directly;
no search index is built.`,
		Example: `  wordgrid words report.pdf rev
  wordgrid words report.pdf Tot -n 20 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWords(cmd.Context(), cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of words (0 for all)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output words as JSON")

	return cmd
}

func runWords(ctx context.Context, cmd *cobra.Command, source, prefix string, opts wordsOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := sess.requireIndexed(ctx); err != nil {
		return err
	}
	words, err := sess.store.QueryByWordPrefix(ctx, prefix, opts.limit)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		return out.JSON(words)
	}
	if len(words) == 0 {
		out.Statusf("", "No words start with %q", prefix)
		return nil
	}
	return out.Words(words)
}
