package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/wordgrid/internal/index"
	"github.com/Aman-CERP/wordgrid/internal/output"
	"github.com/Aman-CERP/wordgrid/internal/store"
)

// statsOptions holds CLI flags for stats.
type statsOptions struct {
	field      string
	repair     bool
	jsonOutput bool
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Show word counts and run metadata of an indexed document",
		Long: `Show the stored word count and the metadata of the last successful run,
and check that the stored words, the recorded word count and a freshly
built search index agree.

With --field, list the distinct values of one word field instead.
Fields: ` + strings.Join(store.Fields, ", "),
		Example: `  wordgrid stats report.pdf
  wordgrid stats report.pdf --field page
  wordgrid stats report.pdf --repair`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.field, "field", "", "List distinct values of this field")
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "Rewrite a mismatched recorded word count")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, source string, opts statsOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, source)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	out := output.New(cmd.OutOrStdout())

	if opts.field != "" {
		values, err := sess.store.ListDistinct(ctx, opts.field)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return out.JSON(map[string]any{"field": opts.field, "values": values})
		}
		out.List(values)
		return nil
	}

	if err := sess.loadEngine(ctx); err != nil {
		return err
	}

	checker := index.NewConsistencyChecker(sess.store, sess.engine)
	check, err := checker.Check(ctx)
	if err != nil {
		return err
	}
	if opts.repair && !check.OK() {
		if err := checker.Repair(ctx, check.Inconsistencies); err != nil {
			return err
		}
		out.Successf("Repaired %d issue(s)", len(check.Inconsistencies))
		if check, err = checker.Check(ctx); err != nil {
			return err
		}
	}

	stats := map[string]string{
		"document":     sess.paths.DocumentID,
		"stored_words": strconv.Itoa(check.Stored),
		"index":        sess.engine.Stats().Backend,
		"consistent":   strconv.FormatBool(check.OK()),
	}
	for _, key := range []string{
		store.StateKeySource,
		store.StateKeyPageCount,
		store.StateKeyWordCount,
		store.StateKeyRunID,
		store.StateKeyIndexedAt,
		store.StateKeySkipped,
	} {
		v, err := sess.store.GetState(ctx, key)
		if err != nil {
			return err
		}
		stats[key] = v
	}

	if opts.jsonOutput {
		return out.JSON(stats)
	}
	if err := out.KeyValues(stats); err != nil {
		return err
	}
	for _, issue := range check.Inconsistencies {
		out.Warningf("%s: %s", issue.Type, issue.Details)
	}
	return nil
}
