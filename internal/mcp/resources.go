package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	StatusResourceURI       = "wordgrid://index/status"
	QueryMetricsResourceURI = "wordgrid://query_metrics"
)

// QueryMetricsOutput is the JSON structure for the query_metrics resource.
type QueryMetricsOutput struct {
	ZeroResultQueries []string `json:"zero_result_queries"`
	CacheEntries      int      `json:"cache_entries"`
}

// registerResources registers the index status resource and, when metrics
// are configured, the query_metrics resource.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         StatusResourceURI,
			Description: "Run metadata and word counts of the indexed document",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStatusResource(ctx)
		},
	)

	if s.metrics != nil {
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        "query_metrics",
				URI:         QueryMetricsResourceURI,
				Description: "Recent queries that matched nothing, for rephrasing searches",
				MIMEType:    "application/json",
			},
			func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return s.readQueryMetricsResource()
			},
		)
	}

	s.logger.Debug("registered resources", slog.Bool("query_metrics", s.metrics != nil))
}

func (s *Server) readStatusResource(ctx context.Context) (*mcp.ReadResourceResult, error) {
	status, err := s.indexStatus(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(StatusResourceURI, status)
}

func (s *Server) readQueryMetricsResource() (*mcp.ReadResourceResult, error) {
	if s.metrics == nil {
		return nil, NewResourceNotFoundError(QueryMetricsResourceURI)
	}

	zero := s.metrics.RecentZeroResultQueries()
	if zero == nil {
		zero = []string{}
	}
	return jsonResource(QueryMetricsResourceURI, QueryMetricsOutput{
		ZeroResultQueries: zero,
		CacheEntries:      s.engine.Stats().CacheSize,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
