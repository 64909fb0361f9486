package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	return &PlainRenderer{out: out}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] current/total - message or page
	msg := event.Message
	if msg == "" && event.Page > 0 {
		msg = fmt.Sprintf("page %d", event.Page)
	}

	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Page > 0 {
		_, _ = fmt.Fprintf(r.out, "%s: page %d: %v\n", prefix, event.Page, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d pages, %d rows, %d words indexed in %s",
		stats.Pages, stats.Rows, stats.Words, stats.Duration.Round(100*time.Millisecond))

	if stats.PagesSkipped > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d pages skipped)", stats.PagesSkipped)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.OverMerged > 0 {
		_, _ = fmt.Fprintf(r.out, "Note: %d rows look over-merged; consider a smaller tolerance or manual boundaries\n", stats.OverMerged)
	}

	if stats.Stages.Decode > 0 || stats.Stages.Store > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Decode:  %s (pages clustered)\n", stats.Stages.Decode.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Extract: %s (words emitted)\n", stats.Stages.Extract.Round(time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Store:   %s (sqlite)\n", stats.Stages.Store.Round(time.Millisecond))
		if stats.Stages.Index > 0 {
			_, _ = fmt.Fprintf(r.out, "  Index:   %s (search)\n", stats.Stages.Index.Round(time.Millisecond))
		}
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

// Errors returns the recorded error events.
func (r *PlainRenderer) Errors() []ErrorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorEvent, len(r.errors))
	copy(out, r.errors)
	return out
}
