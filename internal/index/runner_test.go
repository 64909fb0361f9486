package index

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordgrid/internal/document"
	"github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
	"github.com/Aman-CERP/wordgrid/internal/layout"
	"github.com/Aman-CERP/wordgrid/internal/logging"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
	"github.com/Aman-CERP/wordgrid/internal/ui"
)

func frag(text string, x, y float64) geometry.TextFragment {
	return geometry.TextFragment{Text: text, X: x, Y: y, Width: float64(len(text)) * 6, Height: 10}
}

// twoPageDoc has a sentence that starts on page 1 and ends on page 2.
func twoPageDoc() *document.MemoryDecoder {
	return &document.MemoryDecoder{Pages: []document.Page{
		{Transform: geometry.Identity, Fragments: []geometry.TextFragment{
			frag("This is", 10, 30),
			frag("Hello world.", 10, 10),
		}},
		{Transform: geometry.Identity, Fragments: []geometry.TextFragment{
			frag("a test.", 10, 10),
		}},
	}}
}

func newMemStore(t *testing.T) *store.SQLiteWordStore {
	t.Helper()
	s, err := store.NewSQLiteWordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newRunner(t *testing.T, dec document.Decoder, ws store.WordStore, extra ...func(*RunnerDependencies)) *Runner {
	t.Helper()
	deps := RunnerDependencies{Decoder: dec, Store: ws, Logger: logging.Discard()}
	for _, f := range extra {
		f(&deps)
	}
	r, err := NewRunner(deps)
	require.NoError(t, err)
	return r
}

func texts(words []store.Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

func TestNewRunner_RequiresDecoderAndStore(t *testing.T) {
	_, err := NewRunner(RunnerDependencies{Store: &failingStore{}})
	assert.Error(t, err)

	_, err = NewRunner(RunnerDependencies{Decoder: &document.MemoryDecoder{}})
	assert.Error(t, err)
}

func TestRunner_Run_EmitsWordsInDocumentOrder(t *testing.T) {
	// Given: a two-page document and an empty store
	ws := newMemStore(t)
	r := newRunner(t, twoPageDoc(), ws)

	// When: indexing
	res, err := r.Run(context.Background(), RunnerConfig{DocumentID: "doc-1", Source: "/docs/doc.json"})

	// Then: words follow page, row, index order
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "world.", "This", "is", "a", "test."}, texts(res.WordList))
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, 6, res.Words)
	assert.Empty(t, res.PagesSkipped)
	assert.NotEmpty(t, res.RunID)

	w := res.WordList
	assert.Equal(t, uint32(1), w[2].Page)
	assert.Equal(t, uint32(2), w[2].Row)
	assert.Equal(t, uint32(1), w[2].IndexInRow)
	assert.Equal(t, uint32(2), w[3].IndexInRow)

	// And: the sentence buffer carries across the page break
	assert.Equal(t, "Hello world.", w[1].Sentence)
	assert.Equal(t, "This is a", w[4].Sentence)
	assert.Equal(t, "This is a test.", w[5].Sentence)

	// And: the store holds the same words and the run metadata
	stored, err := ws.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.WordList, stored)

	for key, want := range map[string]string{
		store.StateKeySource:    "/docs/doc.json",
		store.StateKeyPageCount: "2",
		store.StateKeyWordCount: "6",
		store.StateKeyRunID:     res.RunID,
		store.StateKeySkipped:   "",
	} {
		got, err := ws.GetState(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
	indexedAt, _ := ws.GetState(context.Background(), store.StateKeyIndexedAt)
	assert.NotEmpty(t, indexedAt)
}

func TestRunner_Run_ParallelismDoesNotChangeOutput(t *testing.T) {
	pages := make([]document.Page, 24)
	for i := range pages {
		pages[i] = document.Page{Transform: geometry.Identity, Fragments: []geometry.TextFragment{
			frag(fmt.Sprintf("p%d right.", i+1), 100, 10),
			frag(fmt.Sprintf("p%d left", i+1), 10, 10.5),
			frag("below", 10, 40),
		}}
	}

	run := func(workers int) []store.Word {
		r := newRunner(t, &document.MemoryDecoder{Pages: pages}, newMemStore(t))
		res, err := r.Run(context.Background(), RunnerConfig{Workers: workers})
		require.NoError(t, err)
		return res.WordList
	}

	sequential := run(1)
	assert.Equal(t, sequential, run(8))
	assert.Equal(t, "p1 left p1 right.", sequential[3].Sentence)
}

func TestRunner_Run_SkipsFailedPage(t *testing.T) {
	// Given: a three-page document whose middle page cannot be decoded
	dec := &document.MemoryDecoder{
		Pages: []document.Page{
			{Fragments: []geometry.TextFragment{frag("one", 0, 0)}},
			{Fragments: []geometry.TextFragment{frag("two", 0, 0)}},
			{Fragments: []geometry.TextFragment{frag("three", 0, 0)}},
		},
		Failures: map[int]error{2: stderrors.New("corrupt content stream")},
	}
	var out bytes.Buffer
	renderer := ui.NewPlainRenderer(ui.NewConfig(&out))
	metrics := telemetry.NewMetrics()
	r := newRunner(t, dec, newMemStore(t), func(d *RunnerDependencies) {
		d.Renderer = renderer
		d.Metrics = metrics
	})

	// When: indexing
	res, err := r.Run(context.Background(), RunnerConfig{})

	// Then: the run succeeds without page 2
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, texts(res.WordList))
	assert.Equal(t, []int{2}, res.PagesSkipped)
	assert.Equal(t, uint32(3), res.WordList[1].Page)

	// And: the skip is reported to the renderer and metrics
	require.Len(t, renderer.Errors(), 1)
	assert.Equal(t, 2, renderer.Errors()[0].Page)
	assert.ErrorIs(t, renderer.Errors()[0].Err, errors.ErrFragmentDecode)
	assert.Contains(t, out.String(), "(1 pages skipped)")

	n, err := testutil.GatherAndCount(metrics.Registry(), "wordgrid_pages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // ok and skipped series
}

func TestRunner_Run_AllPagesFailed(t *testing.T) {
	// Given: a store with a previous word set
	ws := newMemStore(t)
	require.NoError(t, ws.ReplaceAll(context.Background(), []store.Word{{Text: "old", Page: 1, Row: 1, IndexInRow: 1}}))
	dec := &document.MemoryDecoder{
		Pages:    []document.Page{{}, {}},
		Failures: map[int]error{1: stderrors.New("x"), 2: stderrors.New("y")},
	}

	// When: every page fails
	_, err := newRunner(t, dec, ws).Run(context.Background(), RunnerConfig{})

	// Then: the run fails and the previous words survive
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAllPagesFailed)
	n, _ := ws.Count(context.Background())
	assert.Equal(t, 1, n)
}

func TestRunner_Run_EmptyDocumentReplacesWithEmptySet(t *testing.T) {
	ws := newMemStore(t)
	require.NoError(t, ws.ReplaceAll(context.Background(), []store.Word{{Text: "old", Page: 1, Row: 1, IndexInRow: 1}}))

	res, err := newRunner(t, &document.MemoryDecoder{}, ws).Run(context.Background(), RunnerConfig{})

	require.NoError(t, err)
	assert.Zero(t, res.Words)
	n, _ := ws.Count(context.Background())
	assert.Zero(t, n)
}

func TestRunner_Run_CancelledNeverWrites(t *testing.T) {
	ws := newMemStore(t)
	require.NoError(t, ws.ReplaceAll(context.Background(), []store.Word{{Text: "old", Page: 1, Row: 1, IndexInRow: 1}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t, twoPageDoc(), ws).Run(ctx, RunnerConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRunCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	words, _ := ws.All(context.Background())
	assert.Equal(t, []string{"old"}, texts(words))
}

func TestRunner_Run_StoreFailure(t *testing.T) {
	r := newRunner(t, twoPageDoc(), &failingStore{})

	_, err := r.Run(context.Background(), RunnerConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreWrite)
	var we *errors.WordgridError
	require.True(t, stderrors.As(err, &we))
	assert.NotEmpty(t, we.Details["run_id"])
	assert.NotContains(t, we.Message, "ERR_203")
}

func TestRunner_Run_RejectsNonFiniteTolerance(t *testing.T) {
	nan := math.NaN()
	ws := newMemStore(t)

	_, err := newRunner(t, twoPageDoc(), ws).Run(context.Background(), RunnerConfig{Tolerance: &nan})

	assert.ErrorIs(t, err, errors.ErrToleranceConfig)
}

func TestRunner_Run_ManualBoundariesOverrideDecoder(t *testing.T) {
	// Given: two fragments that would merge under a loose tolerance
	dec := &document.MemoryDecoder{Pages: []document.Page{{
		Transform:  geometry.Identity,
		Boundaries: []float64{1000},
		Fragments: []geometry.TextFragment{
			frag("upper", 10, 10),
			frag("lower", 10, 14),
		},
	}}}
	loose := 50.0

	// When: a cut-line at 12 is configured for page 1
	res, err := newRunner(t, dec, newMemStore(t)).Run(context.Background(), RunnerConfig{
		Tolerance:  &loose,
		Boundaries: map[int][]float64{1: {12}},
	})

	// Then: the configured cut-line decides the rows
	require.NoError(t, err)
	require.Len(t, res.WordList, 2)
	assert.Equal(t, uint32(1), res.WordList[0].Row)
	assert.Equal(t, uint32(2), res.WordList[1].Row)
}

func TestRunner_Run_ReportsOverMergedRows(t *testing.T) {
	frags := make([]geometry.TextFragment, 5)
	for i := range frags {
		frags[i] = frag("w", float64(i*10), 10)
	}
	dec := &document.MemoryDecoder{Pages: []document.Page{{Fragments: frags}}}

	res, err := newRunner(t, dec, newMemStore(t)).Run(context.Background(), RunnerConfig{
		Clustering: layout.Config{OverMergeThreshold: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, res.OverMergedRows)
}

func TestRunner_Run_ProjectsBottomLeftPages(t *testing.T) {
	dec := &document.MemoryDecoder{Pages: []document.Page{{
		Transform: geometry.Transform{Scale: 1, PageHeight: 100, Origin: geometry.OriginBottomLeft},
		Fragments: []geometry.TextFragment{
			frag("bottom", 10, 10),
			frag("top", 10, 90),
		},
	}}}

	res, err := newRunner(t, dec, newMemStore(t)).Run(context.Background(), RunnerConfig{})

	require.NoError(t, err)
	assert.Equal(t, []string{"top", "bottom"}, texts(res.WordList))
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "", joinPages(nil))
	assert.Equal(t, "2", joinPages([]int{2}))
	assert.Equal(t, "2,5,11", joinPages([]int{2, 5, 11}))
}

// failingStore fails every write.
type failingStore struct{ store.WordStore }

func (f *failingStore) ReplaceAll(ctx context.Context, words []store.Word) error {
	return errors.New(errors.ErrCodeStoreWrite, "replace failed: disk full", stderrors.New("disk full"))
}
