package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wgerrors "github.com/Aman-CERP/wordgrid/internal/errors"
	"github.com/Aman-CERP/wordgrid/internal/geometry"
	"github.com/Aman-CERP/wordgrid/internal/logging"
	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
)

func word(text string, page, row, idx uint32, sentence string) store.Word {
	x := float64(idx) * 40
	y := float64(row) * 20
	return store.Word{
		Text:       text,
		Page:       page,
		Row:        row,
		IndexInRow: idx,
		BBox:       geometry.BBox{x, y, x + 30, y + 12},
		Sentence:   sentence,
	}
}

func sampleWords() []store.Word {
	return []store.Word{
		word("The", 1, 1, 1, "The"),
		word("quick", 1, 1, 2, "The quick"),
		word("fox.", 1, 1, 3, "The quick fox."),
		word("Quick", 2, 1, 1, "Quick"),
		word("brown.", 2, 1, 2, "Quick brown."),
	}
}

type fixture struct {
	srv     *Server
	store   *store.SQLiteWordStore
	engine  *search.Engine
	metrics *telemetry.Metrics
}

// newFixture stores and indexes words unless built is false.
func newFixture(t *testing.T, words []store.Word, built bool) fixture {
	t.Helper()
	ctx := context.Background()

	ws, err := store.NewSQLiteWordStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	require.NoError(t, ws.ReplaceAll(ctx, words))
	require.NoError(t, ws.SetState(ctx, map[string]string{
		store.StateKeySource:    "/docs/fox.json",
		store.StateKeyPageCount: "2",
		store.StateKeyWordCount: "5",
		store.StateKeyRunID:     "run-1",
	}))

	metrics := telemetry.NewMetrics()
	b, err := search.NewInvertedBuilder(nil, search.DefaultPrefixWeight)
	require.NoError(t, err)
	engine, err := search.NewEngine(b, search.WithMetrics(metrics), search.WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	if built {
		require.NoError(t, engine.Build(ctx, words))
	}

	srv, err := NewServer(engine, ws,
		WithLogger(logging.Discard()),
		WithMetrics(metrics),
		WithDocumentID("fox-0123456789ab"))
	require.NoError(t, err)

	return fixture{srv: srv, store: ws, engine: engine, metrics: metrics}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	ws, err := store.NewSQLiteWordStore("")
	require.NoError(t, err)
	defer ws.Close()

	_, err = NewServer(nil, ws)
	assert.Error(t, err)

	b, err := search.NewInvertedBuilder(nil, search.DefaultPrefixWeight)
	require.NoError(t, err)
	engine, err := search.NewEngine(b)
	require.NoError(t, err)
	_, err = NewServer(engine, nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	f := newFixture(t, sampleWords(), true)

	names := make([]string, 0, 4)
	for _, tool := range f.srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{ToolSearchWords, ToolWordsByPrefix, ToolListDistinct, ToolIndexStatus}, names)
}

func TestSearchWords_ReturnsMarkdownWithPositions(t *testing.T) {
	// Given: an indexed two-page document
	f := newFixture(t, sampleWords(), true)

	// When: searching for a word
	result, err := f.srv.CallTool(context.Background(), ToolSearchWords, map[string]any{
		"query": "fox",
	})

	// Then: markdown lists the word with page, row and position
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok, "expected string result, got %T", result)
	assert.Contains(t, text, `## Search Results for "fox"`)
	assert.Contains(t, text, "`fox.` page 1, row 1, word 3")
	assert.Contains(t, text, "> The quick fox.")
}

func TestSearchWords_PageFilter(t *testing.T) {
	// Given: "quick" occurs on both pages
	f := newFixture(t, sampleWords(), true)

	// When: restricting to page 2
	results, page, err := f.srv.searchWords(context.Background(), SearchWordsInput{Query: "quick", Page: 2})

	// Then: only page 2 words come back
	require.NoError(t, err)
	assert.Equal(t, uint32(2), page)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, uint32(2), r.Word.Page)
	}
}

func TestSearchWords_InvalidParams(t *testing.T) {
	f := newFixture(t, sampleWords(), true)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", map[string]any{}},
		{"whitespace query", map[string]any{"query": "   "}},
		{"negative page", map[string]any{"query": "fox", "page": float64(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.srv.CallTool(context.Background(), ToolSearchWords, tt.args)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestSearchWords_IndexNotBuilt(t *testing.T) {
	// Given: words are stored but the engine was never built
	f := newFixture(t, sampleWords(), false)

	// When: searching
	_, err := f.srv.CallTool(context.Background(), ToolSearchWords, map[string]any{"query": "fox"})

	// Then: the client is told to index first
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexNotBuilt, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "wordgrid index")
}

func TestWordsByPrefix(t *testing.T) {
	f := newFixture(t, sampleWords(), true)

	t.Run("case-insensitive in reading order", func(t *testing.T) {
		words, err := f.srv.wordsByPrefix(context.Background(), WordsByPrefixInput{Prefix: "QU"})
		require.NoError(t, err)
		require.Len(t, words, 2)
		assert.Equal(t, "quick", words[0].Text)
		assert.Equal(t, "Quick", words[1].Text)
	})

	t.Run("limit", func(t *testing.T) {
		words, err := f.srv.wordsByPrefix(context.Background(), WordsByPrefixInput{Prefix: "qu", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, words, 1)
	})

	t.Run("markdown", func(t *testing.T) {
		result, err := f.srv.CallTool(context.Background(), ToolWordsByPrefix, map[string]any{"prefix": "br"})
		require.NoError(t, err)
		assert.Contains(t, result.(string), "Found 1 word\n")
	})

	t.Run("empty prefix", func(t *testing.T) {
		_, err := f.srv.CallTool(context.Background(), ToolWordsByPrefix, map[string]any{})
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
	})
}

func TestListDistinct(t *testing.T) {
	f := newFixture(t, sampleWords(), true)

	// When: listing pages
	result, err := f.srv.CallTool(context.Background(), ToolListDistinct, map[string]any{"field": "page"})

	// Then: each page appears once
	require.NoError(t, err)
	out, ok := result.(*DistinctOutput)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, out.Values)

	// When: the field is unknown
	_, err = f.srv.CallTool(context.Background(), ToolListDistinct, map[string]any{"field": "font"})

	// Then: it is an invalid parameter, not an internal error
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestIndexStatus(t *testing.T) {
	// Given: a consistent store and index, and one query that matched nothing
	f := newFixture(t, sampleWords(), true)
	_, err := f.engine.Search(context.Background(), "zebra", search.SearchOptions{})
	require.NoError(t, err)

	// When: requesting status
	result, err := f.srv.CallTool(context.Background(), ToolIndexStatus, nil)

	// Then: run metadata, counts and the zero-result query are reported
	require.NoError(t, err)
	status := result.(*IndexStatusOutput)
	assert.Equal(t, "fox-0123456789ab", status.Document.ID)
	assert.Equal(t, "/docs/fox.json", status.Document.Source)
	assert.Equal(t, 2, status.Document.PageCount)
	assert.Equal(t, "run-1", status.Document.RunID)
	assert.True(t, status.Index.Ready)
	assert.Equal(t, 5, status.Index.StoredWords)
	assert.Equal(t, 5, status.Index.IndexedWords)
	assert.NotEmpty(t, status.Index.BuiltAt)
	assert.True(t, status.Consistent)
	assert.Empty(t, status.Issues)
	assert.Contains(t, status.RecentZeroResultQueries, "zebra")
}

func TestIndexStatus_ReportsMissingIndex(t *testing.T) {
	f := newFixture(t, sampleWords(), false)

	status, err := f.srv.indexStatus(context.Background())

	require.NoError(t, err)
	assert.False(t, status.Index.Ready)
	assert.False(t, status.Consistent)
	require.Len(t, status.Issues, 1)
	assert.Contains(t, status.Issues[0], "index_missing")
}

func TestCallTool_UnknownTool(t *testing.T) {
	f := newFixture(t, sampleWords(), true)

	_, err := f.srv.CallTool(context.Background(), "search_code", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"not built", wgerrors.IndexNotBuiltError(), ErrCodeIndexNotBuilt},
		{"invalid field", wgerrors.New(wgerrors.ErrCodeInvalidField, "bad", nil), ErrCodeInvalidParams},
		{"store read", wgerrors.New(wgerrors.ErrCodeStoreRead, "io", nil), ErrCodeStoreUnavailable},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"passthrough", NewInvalidParamsError("x"), ErrCodeInvalidParams},
		{"unknown", assert.AnError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-3, 10, 1, 50))
	assert.Equal(t, 7, clampLimit(7, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(900, 10, 1, 50))
}

func TestFormatSearchResults_Empty(t *testing.T) {
	assert.Equal(t, `No words found for "x"`, FormatSearchResults("x", 0, nil))
	assert.Equal(t, `No words found for "x" on page 3`, FormatSearchResults("x", 3, nil))
}

// connect runs the server over in-memory transports and returns a client session.
func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := mcp.NewInMemoryTransports()

	ss, err := srv.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServer_OverProtocol(t *testing.T) {
	// Given: a client connected to the server
	f := newFixture(t, sampleWords(), true)
	cs := connect(t, f.srv)
	ctx := context.Background()

	t.Run("tools are listed", func(t *testing.T) {
		res, err := cs.ListTools(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, res.Tools, 4)
	})

	t.Run("search_words returns structured words", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      ToolSearchWords,
			Arguments: map[string]any{"query": "brown"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		require.NotEmpty(t, res.Content)

		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		var out SearchWordsOutput
		require.NoError(t, json.Unmarshal(raw, &out))
		require.NotEmpty(t, out.Results)
		assert.Equal(t, "brown.", out.Results[0].Text)
		assert.Equal(t, uint32(2), out.Results[0].Page)
	})

	t.Run("invalid field is a tool error", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      ToolListDistinct,
			Arguments: map[string]any{"field": "font"},
		})
		if err == nil {
			assert.True(t, res.IsError)
		}
	})

	t.Run("status resource", func(t *testing.T) {
		res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: StatusResourceURI})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)

		var status IndexStatusOutput
		require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &status))
		assert.Equal(t, 5, status.Index.StoredWords)
	})

	t.Run("query metrics resource", func(t *testing.T) {
		res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: QueryMetricsResourceURI})
		require.NoError(t, err)
		assert.Contains(t, res.Contents[0].Text, "zero_result_queries")
	})
}
