package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	wgerrors "github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteWordStore {
	t.Helper()
	s, err := NewSQLiteWordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testWords() []Word {
	return []Word{
		{Text: "Hello", Page: 1, Row: 1, IndexInRow: 1, BBox: geometry.BBox{0, 0, 50, 10}, Sentence: "Hello"},
		{Text: "world.", Page: 1, Row: 1, IndexInRow: 2, BBox: geometry.BBox{60, 0, 120, 10}, Sentence: "Hello world."},
		{Text: "help_me", Page: 2, Row: 1, IndexInRow: 1, BBox: geometry.BBox{0, 20, 70, 30}, Sentence: "help_me"},
		{Text: "HELLO", Page: 1, Row: 3, IndexInRow: 1, BBox: geometry.BBox{0, 40, 50, 50}, Sentence: "help_me HELLO"},
	}
}

func TestSQLiteWordStore_ReplaceAllAndReadBack(t *testing.T) {
	// Given: an empty store
	s := newTestStore(t)
	ctx := context.Background()

	// When: replacing with four words
	require.NoError(t, s.ReplaceAll(ctx, testWords()))

	// Then: all words come back in emission order, fully populated
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, testWords(), all)
}

func TestSQLiteWordStore_ReplaceAllIsFullReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testWords()))

	require.NoError(t, s.ReplaceAll(ctx, testWords()[:1]))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Hello", all[0].Text)

	require.NoError(t, s.ReplaceAll(ctx, nil))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteWordStore_FailedReplaceKeepsPreviousSet(t *testing.T) {
	// Given: a stored word set and a trigger that rejects one word
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testWords()))
	_, err := s.db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON words
		WHEN NEW.text = 'boom' BEGIN SELECT RAISE(ABORT, 'boom rejected'); END;`)
	require.NoError(t, err)

	// When: the replacement fails part-way through
	err = s.ReplaceAll(ctx, []Word{{Text: "fine", Page: 1, Row: 1, IndexInRow: 1}, {Text: "boom", Page: 1, Row: 1, IndexInRow: 2}})

	// Then: a store write error, and the previous set is intact
	require.Error(t, err)
	assert.True(t, errors.Is(err, wgerrors.ErrStoreWrite))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, testWords(), all)
}

func TestSQLiteWordStore_CancelledReplace(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ReplaceAll(context.Background(), testWords()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ReplaceAll(ctx, nil)
	require.Error(t, err)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSQLiteWordStore_QueryByWordPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testWords()))

	tests := []struct {
		name   string
		prefix string
		limit  int
		want   []string
	}{
		{"case insensitive, position order", "hel", 0, []string{"Hello", "HELLO", "help_me"}},
		{"limit", "HEL", 2, []string{"Hello", "HELLO"}},
		{"underscore is literal", "help_", 0, []string{"help_me"}},
		{"percent is literal", "%", 0, nil},
		{"no match", "zzz", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words, err := s.QueryByWordPrefix(ctx, tt.prefix, tt.limit)
			require.NoError(t, err)
			var got []string
			for _, w := range words {
				got = append(got, w.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteWordStore_ListDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, testWords()))

	pages, err := s.ListDistinct(ctx, FieldPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)

	rows, err := s.ListDistinct(ctx, FieldRow)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, rows)

	texts, err := s.ListDistinct(ctx, FieldText)
	require.NoError(t, err)
	assert.Len(t, texts, 4)

	_, err = s.ListDistinct(ctx, "x0; DROP TABLE words")
	require.Error(t, err)
	assert.True(t, errors.Is(err, wgerrors.ErrInvalidField))
}

func TestSQLiteWordStore_State(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetState(ctx, StateKeyRunID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetState(ctx, map[string]string{StateKeyRunID: "r1", StateKeyPageCount: "3"}))
	require.NoError(t, s.SetState(ctx, map[string]string{StateKeyRunID: "r2"}))

	v, err = s.GetState(ctx, StateKeyRunID)
	require.NoError(t, err)
	assert.Equal(t, "r2", v)

	v, err = s.GetState(ctx, StateKeyPageCount)
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}

func TestSQLiteWordStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "words.db")
	ctx := context.Background()

	s, err := NewSQLiteWordStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAll(ctx, testWords()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteWordStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteWordStore_ClosedStoreFails(t *testing.T) {
	s, err := NewSQLiteWordStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Count(context.Background())
	assert.Error(t, err)
	err = s.ReplaceAll(context.Background(), testWords())
	assert.True(t, errors.Is(err, wgerrors.ErrStoreWrite))
}
