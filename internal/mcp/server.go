package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/wordgrid/internal/index"
	"github.com/Aman-CERP/wordgrid/internal/search"
	"github.com/Aman-CERP/wordgrid/internal/store"
	"github.com/Aman-CERP/wordgrid/internal/telemetry"
	"github.com/Aman-CERP/wordgrid/pkg/version"
)

// Tool names.
const (
	ToolSearchWords   = "search_words"
	ToolWordsByPrefix = "words_by_prefix"
	ToolListDistinct  = "list_distinct"
	ToolIndexStatus   = "index_status"
)

// Limits applied to tool arguments.
const (
	defaultSearchLimit = 10
	defaultPrefixLimit = 50
	maxLimit           = 500
)

// Server is the MCP server for one indexed document.
// It answers tool calls from the search engine and the word store.
type Server struct {
	mcp     *mcp.Server
	engine  *search.Engine
	store   store.WordStore
	metrics *telemetry.Metrics
	logger  *slog.Logger

	documentID string
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics exposes recent zero-result queries through index_status and
// the query metrics resource.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithDocumentID reports id in index_status.
func WithDocumentID(id string) Option {
	return func(s *Server) {
		s.documentID = id
	}
}

var tools = []ToolInfo{
	{
		Name:        ToolSearchWords,
		Description: "Ranked word search over the indexed document. Matches the word itself and the sentence it belongs to. Every result carries its page, row, position in row and bounding box, so it can be highlighted on the page.",
	},
	{
		Name:        ToolWordsByPrefix,
		Description: "Case-insensitive prefix lookup in reading order (page, row, position). Use for autocomplete or to list every occurrence of a word stem.",
	},
	{
		Name:        ToolListDistinct,
		Description: "Distinct values of one word field: text, page, row, index_in_row or sentence.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Check whether the document is indexed, when, how many words it holds, and whether the store and search index agree.",
	},
}

// NewServer creates a new MCP server.
func NewServer(engine *search.Engine, ws store.WordStore, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if ws == nil {
		return nil, errors.New("word store is required")
	}

	s := &Server{
		engine: engine,
		store:  ws,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "wordgrid",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "wordgrid", version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-decoded arguments.
// Search and prefix tools return markdown; list_distinct and index_status
// return their structured outputs.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchWords:
		input := SearchWordsInput{
			Query: stringArg(args, "query"),
			Limit: intArg(args, "limit"),
			Page:  intArg(args, "page"),
		}
		results, page, err := s.searchWords(ctx, input)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(input.Query, page, results), nil
	case ToolWordsByPrefix:
		input := WordsByPrefixInput{
			Prefix: stringArg(args, "prefix"),
			Limit:  intArg(args, "limit"),
		}
		words, err := s.wordsByPrefix(ctx, input)
		if err != nil {
			return "", err
		}
		return FormatWords(input.Prefix, words), nil
	case ToolListDistinct:
		return s.listDistinct(ctx, ListDistinctInput{Field: stringArg(args, "field")})
	case ToolIndexStatus:
		return s.indexStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) searchWords(ctx context.Context, input SearchWordsInput) ([]search.SearchResult, uint32, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, 0, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if input.Page < 0 {
		return nil, 0, NewInvalidParamsError("page must be 0 (all pages) or a 1-based page number")
	}

	start := time.Now()
	requestID := generateRequestID()
	limit := clampLimit(input.Limit, defaultSearchLimit, 1, maxLimit)
	page := uint32(input.Page)

	s.logger.Info("search_words started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit),
		slog.Int("page", input.Page))

	results, err := s.engine.Search(ctx, input.Query, search.SearchOptions{Limit: limit, Page: page})
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search_words failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	s.logger.Info("search_words completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return results, page, nil
}

func (s *Server) wordsByPrefix(ctx context.Context, input WordsByPrefixInput) ([]store.Word, error) {
	if input.Prefix == "" {
		return nil, NewInvalidParamsError("prefix parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := generateRequestID()
	limit := clampLimit(input.Limit, defaultPrefixLimit, 1, maxLimit)

	words, err := s.store.QueryByWordPrefix(ctx, input.Prefix, limit)
	if err != nil {
		s.logger.Error("words_by_prefix failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("words_by_prefix completed",
		slog.String("request_id", requestID),
		slog.String("prefix", input.Prefix),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(words)))

	return words, nil
}

func (s *Server) listDistinct(ctx context.Context, input ListDistinctInput) (*DistinctOutput, error) {
	if input.Field == "" {
		return nil, NewInvalidParamsError(fmt.Sprintf("field parameter is required, one of: %s", strings.Join(store.Fields, ", ")))
	}

	values, err := s.store.ListDistinct(ctx, input.Field)
	if err != nil {
		return nil, MapError(err)
	}
	if values == nil {
		values = []string{}
	}

	s.logger.Debug("list_distinct completed",
		slog.String("field", input.Field),
		slog.Int("values", len(values)))

	return &DistinctOutput{Field: input.Field, Values: values}, nil
}

func (s *Server) indexStatus(ctx context.Context) (*IndexStatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	state := make(map[string]string)
	for _, key := range []string{
		store.StateKeySource,
		store.StateKeyPageCount,
		store.StateKeyRunID,
		store.StateKeyIndexedAt,
		store.StateKeySkipped,
	} {
		v, err := s.store.GetState(ctx, key)
		if err != nil {
			return nil, MapError(err)
		}
		state[key] = v
	}
	pageCount, _ := strconv.Atoi(state[store.StateKeyPageCount])

	check, err := index.NewConsistencyChecker(s.store, s.engine).Check(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	stats := s.engine.Stats()
	output := &IndexStatusOutput{
		Document: DocumentInfo{
			ID:           s.documentID,
			Source:       state[store.StateKeySource],
			PageCount:    pageCount,
			PagesSkipped: state[store.StateKeySkipped],
			RunID:        state[store.StateKeyRunID],
			IndexedAt:    state[store.StateKeyIndexedAt],
		},
		Index: IndexInfo{
			Ready:        stats.Built,
			Backend:      stats.Backend,
			StoredWords:  check.Stored,
			IndexedWords: stats.Words,
			CacheEntries: stats.CacheSize,
		},
		Consistent:              check.OK(),
		RecentZeroResultQueries: s.metrics.RecentZeroResultQueries(),
	}
	if stats.Built {
		output.Index.BuiltAt = stats.BuiltAt.Format(time.RFC3339)
	}
	for _, issue := range check.Inconsistencies {
		output.Issues = append(output.Issues, fmt.Sprintf("%s: %s", issue.Type, issue.Details))
	}

	s.logger.Info("index_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ready", stats.Built),
		slog.Bool("consistent", output.Consistent))

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchWords, Description: tools[0].Description}, s.mcpSearchWordsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolWordsByPrefix, Description: tools[1].Description}, s.mcpWordsByPrefixHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolListDistinct, Description: tools[2].Description}, s.mcpListDistinctHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: tools[3].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpSearchWordsHandler returns the ranked words as structured output with a
// markdown rendering as text content.
func (s *Server) mcpSearchWordsHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchWordsInput) (
	*mcp.CallToolResult,
	SearchWordsOutput,
	error,
) {
	results, page, err := s.searchWords(ctx, input)
	if err != nil {
		return nil, SearchWordsOutput{}, err
	}

	output := SearchWordsOutput{
		Query:   input.Query,
		Results: make([]WordOutput, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, ToSearchResultOutput(r))
	}

	return textResult(FormatSearchResults(input.Query, page, results)), output, nil
}

func (s *Server) mcpWordsByPrefixHandler(ctx context.Context, _ *mcp.CallToolRequest, input WordsByPrefixInput) (
	*mcp.CallToolResult,
	WordsOutput,
	error,
) {
	words, err := s.wordsByPrefix(ctx, input)
	if err != nil {
		return nil, WordsOutput{}, err
	}

	output := WordsOutput{
		Prefix: input.Prefix,
		Words:  make([]WordOutput, 0, len(words)),
	}
	for _, w := range words {
		output.Words = append(output.Words, ToWordOutput(w))
	}

	return textResult(FormatWords(input.Prefix, words)), output, nil
}

func (s *Server) mcpListDistinctHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListDistinctInput) (
	*mcp.CallToolResult,
	DistinctOutput,
	error,
) {
	output, err := s.listDistinct(ctx, input)
	if err != nil {
		return nil, DistinctOutput{}, err
	}
	return nil, *output, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	output, err := s.indexStatus(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, *output, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg accepts JSON numbers, which decode as float64, and plain ints.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
