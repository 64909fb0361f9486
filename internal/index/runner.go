// Package index runs the page → rows → words pipeline for one document and
// persists the result.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/wordgrid/internal/document"
	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/extract"
	"github.com/Aman-CERP/wordgrid/internal/layout"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
	"github.com/Aman-CERP/wordgrid/internal/ui"
)

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// DocumentID identifies the document in logs and state.
	DocumentID string

	// Source is the document path recorded in the store state.
	Source string

	// Clustering tunes tolerance derivation and over-merge diagnostics.
	Clustering layout.Config

	// Tolerance fixes the row tolerance for every page. Nil derives it per page.
	Tolerance *float64

	// Boundaries holds manual row cut-lines per 1-based page number. They
	// replace any boundaries the decoder supplies for that page.
	Boundaries map[int][]float64

	// Workers bounds parallel decoding. 0 uses GOMAXPROCS.
	Workers int
}

// RunnerResult is the outcome of an indexing run.
type RunnerResult struct {
	RunID          string
	Pages          int
	PagesSkipped   []int
	Rows           int
	Words          int
	OverMergedRows int
	Duration       time.Duration

	// WordList is the emitted word sequence, in document order.
	WordList []store.Word
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Decoder supplies pages (required).
	Decoder document.Decoder

	// Store receives the word set (required).
	Store store.WordStore

	// Renderer displays progress. Nil discards it.
	Renderer ui.Renderer

	// Metrics records page and run outcomes. Nil records nothing.
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes indexing runs. A Runner may be reused for several runs
// over the same decoder, but runs must not overlap.
type Runner struct {
	decoder  document.Decoder
	store    store.WordStore
	renderer ui.Renderer
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("word store is required")
	}

	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		decoder:  deps.Decoder,
		store:    deps.Store,
		renderer: renderer,
		metrics:  deps.Metrics,
		logger:   logger,
	}, nil
}

// RunContext is the state threaded through the sequential extraction stage.
// The sentence buffer spans page boundaries, so pages must be visited in
// order.
type RunContext struct {
	RunID      string
	Sentence   extract.SentenceBuffer
	Words      []store.Word
	Rows       int
	OverMerged int
	Skipped    []int
}

// pageLayout is the stage 1 outcome for one page.
type pageLayout struct {
	rows *layout.RowLayout
	err  error
}

type stageTiming struct {
	decode  time.Duration
	extract time.Duration
	store   time.Duration
}

// Run executes the pipeline:
//  1. decode, project and cluster every page in parallel
//  2. extract words page by page in document order
//  3. replace the stored word set in one transaction
//  4. record run metadata
//
// A page that fails to decode is skipped and logged. The run fails only
// when every page fails. A cancelled run never writes to the store.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	var timing stageTiming

	if t := cfg.Tolerance; t != nil && (math.IsNaN(*t) || math.IsInf(*t, 0)) {
		r.metrics.RunFinished(telemetry.RunFailed)
		return nil, errors.ToleranceConfigError(*t)
	}

	rc := &RunContext{RunID: uuid.NewString()}
	log := r.logger.With(slog.String("run_id", rc.RunID), slog.String("document", cfg.DocumentID))

	count, err := r.decoder.PageCount(ctx)
	if err != nil {
		r.metrics.RunFinished(telemetry.RunFailed)
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	log.Info("index_started", slog.String("source", cfg.Source), slog.Int("pages", count))

	// Stage 1
	decodeStart := time.Now()
	layouts, err := r.layoutPages(ctx, cfg, count)
	if err != nil {
		return nil, r.cancelled(log, err)
	}
	timing.decode = time.Since(decodeStart)

	// Stage 2
	extractStart := time.Now()
	if err := r.extractPages(ctx, log, rc, layouts); err != nil {
		return nil, r.cancelled(log, err)
	}
	timing.extract = time.Since(extractStart)

	if count > 0 && len(rc.Skipped) == count {
		r.metrics.RunFinished(telemetry.RunFailed)
		log.Error("index_failed", slog.Int("pages", count))
		return nil, errors.New(errors.ErrCodeAllPagesFailed,
			fmt.Sprintf("all %d pages failed to decode", count), nil).
			WithDetail("run_id", rc.RunID)
	}

	// Stage 3
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageStoring,
		Message: fmt.Sprintf("Writing %d words...", len(rc.Words)),
	})
	storeStart := time.Now()
	if err := r.store.ReplaceAll(ctx, rc.Words); err != nil {
		r.metrics.RunFinished(telemetry.RunFailed)
		log.Error("index_store_failed", slog.String("error", err.Error()))
		return nil, errors.StoreWriteError(rc.RunID, rootCause(err))
	}
	timing.store = time.Since(storeStart)

	// Stage 4
	state := map[string]string{
		store.StateKeySource:    cfg.Source,
		store.StateKeyPageCount: strconv.Itoa(count),
		store.StateKeyWordCount: strconv.Itoa(len(rc.Words)),
		store.StateKeyRunID:     rc.RunID,
		store.StateKeyIndexedAt: time.Now().UTC().Format(time.RFC3339),
		store.StateKeySkipped:   joinPages(rc.Skipped),
	}
	if err := r.store.SetState(ctx, state); err != nil {
		// The word set is already committed; stale metadata only affects status output.
		log.Warn("failed to save run state", slog.String("error", err.Error()))
	}

	duration := time.Since(start)
	r.metrics.RunFinished(telemetry.RunSuccess)

	r.renderer.Complete(ui.CompletionStats{
		Pages:        count,
		PagesSkipped: len(rc.Skipped),
		Rows:         rc.Rows,
		Words:        len(rc.Words),
		OverMerged:   rc.OverMerged,
		Duration:     duration,
		Warnings:     len(rc.Skipped),
		Stages: ui.StageTimings{
			Decode:  timing.decode,
			Extract: timing.extract,
			Store:   timing.store,
		},
	})

	log.Info("index_complete",
		slog.Int("pages", count),
		slog.Int("pages_skipped", len(rc.Skipped)),
		slog.Int("rows", rc.Rows),
		slog.Int("words", len(rc.Words)),
		slog.Int("overmerged_rows", rc.OverMerged),
		slog.Int64("duration_total_ms", duration.Milliseconds()),
		slog.Int64("duration_decode_ms", timing.decode.Milliseconds()),
		slog.Int64("duration_extract_ms", timing.extract.Milliseconds()),
		slog.Int64("duration_store_ms", timing.store.Milliseconds()))

	return &RunnerResult{
		RunID:          rc.RunID,
		Pages:          count,
		PagesSkipped:   rc.Skipped,
		Rows:           rc.Rows,
		Words:          len(rc.Words),
		OverMergedRows: rc.OverMerged,
		Duration:       duration,
		WordList:       rc.Words,
	}, nil
}

// layoutPages decodes and clusters every page with bounded parallelism.
// Page errors are kept in the result; only cancellation is returned.
func (r *Runner) layoutPages(ctx context.Context, cfg RunnerConfig, count int) ([]pageLayout, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	clusterer := layout.NewRowClusterer(cfg.Clustering)
	layouts := make([]pageLayout, count)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range count {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			layouts[i] = r.layoutPage(gctx, clusterer, cfg, i+1)
			r.renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageDecoding,
				Current: int(done.Add(1)),
				Total:   count,
				Page:    i + 1,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return layouts, nil
}

func (r *Runner) layoutPage(ctx context.Context, clusterer *layout.RowClusterer, cfg RunnerConfig, number int) pageLayout {
	page, err := r.decoder.Page(ctx, number)
	if err != nil {
		return pageLayout{err: err}
	}

	boundaries := page.Boundaries
	if manual := cfg.Boundaries[number]; len(manual) > 0 {
		boundaries = manual
	}

	fragments := page.Transform.ProjectAll(page.Fragments)
	rows, err := clusterer.Cluster(fragments, cfg.Tolerance, boundaries)
	if err != nil {
		return pageLayout{err: errors.FragmentDecodeError(number, err)}
	}
	return pageLayout{rows: rows}
}

// extractPages emits words in (page, row, index) order through one sentence
// buffer. Cancellation is checked between pages.
func (r *Runner) extractPages(ctx context.Context, log *slog.Logger, rc *RunContext, layouts []pageLayout) error {
	for i, pl := range layouts {
		if err := ctx.Err(); err != nil {
			return err
		}
		pageNum := i + 1

		if pl.err != nil {
			rc.Skipped = append(rc.Skipped, pageNum)
			r.metrics.PageProcessed(telemetry.PageSkipped)
			r.renderer.AddError(ui.ErrorEvent{Page: pageNum, Err: pl.err, IsWarn: true})
			attrs := errors.LogAttrs(pl.err)
			if errors.GetCode(pl.err) != errors.ErrCodeFragmentDecode {
				attrs = append(attrs, slog.Int("page", pageNum))
			}
			log.Warn("page_skipped", attrs...)
			continue
		}

		pageWords := 0
		for rowIdx, row := range pl.rows.Rows {
			words := extract.ExtractWords(row, uint32(pageNum), uint32(rowIdx+1), &rc.Sentence)
			rc.Words = append(rc.Words, words...)
			pageWords += len(words)
		}
		rc.Rows += len(pl.rows.Rows)

		for _, d := range pl.rows.OverMerged {
			log.Warn("row_overmerged",
				slog.Int("page", pageNum),
				slog.Int("row", d.Row),
				slog.Int("fragments", d.Fragments),
				slog.Float64("tolerance", pl.rows.Tolerance))
		}
		rc.OverMerged += len(pl.rows.OverMerged)
		r.metrics.OverMergedRows(len(pl.rows.OverMerged))
		r.metrics.PageProcessed(telemetry.PageOK)
		r.metrics.WordsEmitted(pageWords)

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageExtracting,
			Current: pageNum,
			Total:   len(layouts),
			Page:    pageNum,
		})
	}
	return nil
}

func (r *Runner) cancelled(log *slog.Logger, cause error) error {
	r.metrics.RunFinished(telemetry.RunCancelled)
	log.Warn("index_cancelled", slog.String("error", cause.Error()))
	return errors.New(errors.ErrCodeRunCancelled, "indexing cancelled", cause)
}

// rootCause strips one WordgridError layer so a store error is not reported
// twice in the message.
func rootCause(err error) error {
	if we, ok := err.(*errors.WordgridError); ok && we.Cause != nil {
		return we.Cause
	}
	return err
}

func joinPages(pages []int) string {
	out := make([]byte, 0, len(pages)*3)
	for i, p := range pages {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendInt(out, int64(p), 10)
	}
	return string(out)
}
