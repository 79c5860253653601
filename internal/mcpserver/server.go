package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/metrics"
	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/service"
)

const (
	ServerName    = "web-search"
	ServerVersion = "1.0.0"

	ToolWebSearch          = "web_search"
	ToolRateLimitInfo      = "get_rate_limit_info"
	ToolPerformanceInfo    = "get_performance_info"
	ToolUpdateSearchConfig = "update_search_config"
	ToolSearchHistory      = "get_search_history"

	lowRemainingThreshold = 50
	defaultHistoryLimit   = 20
)

type SearchOptionsInput struct {
	MaxResults         int      `json:"maxResults,omitempty" jsonschema:"Maximum number of results to return (1-50)"`
	Language           string   `json:"language,omitempty" jsonschema:"Language code for search results (e.g. en, es, fr)"`
	Region             string   `json:"region,omitempty" jsonschema:"Region code for search results (e.g. us, uk, ca)"`
	SafeSearch         bool     `json:"safeSearch,omitempty" jsonschema:"Enable safe search filtering"`
	TimeRange          string   `json:"timeRange,omitempty" jsonschema:"Filter results by time range: day, week, month or year"`
	FormatForLLM       bool     `json:"formatForLLM,omitempty" jsonschema:"Format results optimized for LLM consumption"`
	IncludeSummary     bool     `json:"includeSummary,omitempty" jsonschema:"Include a summary of all results"`
	RelevanceThreshold *float64 `json:"relevanceThreshold,omitempty" jsonschema:"Minimum relevance score (0-1) for results"`
}

type WebSearchInput struct {
	Query   string              `json:"query" jsonschema:"The search query to execute"`
	Options *SearchOptionsInput `json:"options,omitempty" jsonschema:"Search options"`
}

type UpdateConfigInput struct {
	GoogleAPIKey         *string `json:"googleApiKey,omitempty" jsonschema:"Google Custom Search API key"`
	GoogleSearchEngineID *string `json:"googleSearchEngineId,omitempty" jsonschema:"Google Custom Search Engine ID"`
	MaxResults           *int    `json:"maxResults,omitempty" jsonschema:"Default maximum results per search (1-50)"`
}

type HistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"How many recent searches to return (default 20, max 100)"`
}

type emptyInput struct{}

type RateLimitInfo struct {
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
	ResetTime string `json:"resetTime"`
	ResetIn   int64  `json:"resetIn"`
	Warning   string `json:"warning,omitempty"`
}

type PerformanceInfo struct {
	RateLimit   RateLimitInfo                         `json:"rateLimit"`
	EngineStats map[string]domain.EngineStatsSnapshot `json:"engineStats"`
	Timestamp   string                                `json:"timestamp"`
}

type ConfigUpdateResult struct {
	Message          string `json:"message"`
	GoogleConfigured bool   `json:"googleConfigured"`
	MaxResults       int    `json:"maxResults"`
	Timestamp        string `json:"timestamp"`
}

// Server - MCP фронтенд над SearchService. Пишет протокол в stdout,
// поэтому логгер должен смотреть в stderr.
type Server struct {
	svc     service.SearchService
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	server  *mcp.Server
}

func New(svc service.SearchService, logger *zap.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		svc:     svc,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
	}
	s.registerTools()

	logger.Info("mcp server initialized",
		zap.String("server_name", ServerName),
		zap.String("version", ServerVersion),
	)
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolWebSearch,
		Description: "Search the web using Google Custom Search API, DuckDuckGo, or web scraping as fallbacks. Optimized for LLM consumption with structured results.",
	}, s.handleWebSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolRateLimitInfo,
		Description: "Get current rate limit information",
	}, s.handleRateLimitInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolPerformanceInfo,
		Description: "Get performance statistics for all search engines",
	}, s.handlePerformanceInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolUpdateSearchConfig,
		Description: "Update search configuration (Google API keys, default result count)",
	}, s.handleUpdateConfig)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolSearchHistory,
		Description: "Get recent searches from the audit log",
	}, s.handleSearchHistory)
}

// Run блокируется до закрытия stdin или отмены ctx
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server started on stdio transport")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run mcp server: %w", err)
	}
	return nil
}

// Connect подключает сервер к произвольному транспорту (в тестах in-memory)
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) handleWebSearch(ctx context.Context, _ *mcp.CallToolRequest, in WebSearchInput) (*mcp.CallToolResult, any, error) {
	start := s.now()
	opts := SearchOptionsInput{}
	if in.Options != nil {
		opts = *in.Options
	}

	s.logger.Info("tool called",
		zap.String("tool", ToolWebSearch),
		zap.String("query", in.Query),
		zap.Int("max_results", opts.MaxResults),
		zap.Bool("format_for_llm", opts.FormatForLLM),
	)

	searchOpts := search.Options{
		MaxResults: opts.MaxResults,
		Language:   opts.Language,
		Region:     opts.Region,
		SafeSearch: opts.SafeSearch,
		TimeRange:  search.TimeRange(opts.TimeRange),
	}
	if err := validateOptions(searchOpts, opts.RelevanceThreshold); err != nil {
		return s.toolError(ToolWebSearch, start, err), nil, nil
	}

	resp, err := s.svc.Search(ctx, in.Query, searchOpts)
	if err != nil {
		return s.toolError(ToolWebSearch, start, err), nil, nil
	}

	var payload any = resp
	if opts.FormatForLLM {
		payload = FormatForLLM(resp, LLMOptions{
			IncludeSummary:     opts.IncludeSummary,
			RelevanceThreshold: opts.RelevanceThreshold,
		})
	}

	s.logger.Info("web search completed",
		zap.String("query", resp.Query),
		zap.String("engine", resp.SearchEngine),
		zap.Int("results", len(resp.Results)),
		zap.Int64("processing_ms", resp.ProcessingTimeMs),
	)
	return s.jsonResult(ToolWebSearch, start, payload), nil, nil
}

func (s *Server) handleRateLimitInfo(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	start := s.now()
	info := s.rateLimitInfo()
	if info.Warning != "" {
		s.logger.Warn("rate limit running low",
			zap.Int("remaining", info.Remaining),
			zap.String("reset_time", info.ResetTime),
		)
	}
	return s.jsonResult(ToolRateLimitInfo, start, info), nil, nil
}

func (s *Server) handlePerformanceInfo(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	start := s.now()
	perf := s.svc.PerformanceStatus()
	info := PerformanceInfo{
		RateLimit:   s.rateLimitInfo(),
		EngineStats: perf.EngineStats,
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	}
	return s.jsonResult(ToolPerformanceInfo, start, info), nil, nil
}

func (s *Server) handleUpdateConfig(_ context.Context, _ *mcp.CallToolRequest, in UpdateConfigInput) (*mcp.CallToolResult, any, error) {
	start := s.now()
	s.logger.Info("updating search configuration",
		zap.Bool("has_google_api_key", in.GoogleAPIKey != nil && *in.GoogleAPIKey != ""),
		zap.Bool("has_google_engine_id", in.GoogleSearchEngineID != nil && *in.GoogleSearchEngineID != ""),
	)

	err := s.svc.UpdateConfig(search.ConfigUpdate{
		GoogleAPIKey:         in.GoogleAPIKey,
		GoogleSearchEngineID: in.GoogleSearchEngineID,
		MaxResults:           in.MaxResults,
	})
	if err != nil {
		return s.toolError(ToolUpdateSearchConfig, start, err), nil, nil
	}

	cfg := s.svc.Config()
	return s.jsonResult(ToolUpdateSearchConfig, start, ConfigUpdateResult{
		Message:          "Search configuration updated successfully",
		GoogleConfigured: cfg.GoogleConfigured(),
		MaxResults:       cfg.MaxResults,
		Timestamp:        s.now().UTC().Format(time.RFC3339),
	}), nil, nil
}

func (s *Server) handleSearchHistory(ctx context.Context, _ *mcp.CallToolRequest, in HistoryInput) (*mcp.CallToolResult, any, error) {
	start := s.now()
	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	entries, err := s.svc.SearchHistory(ctx, limit)
	if err != nil {
		return s.toolError(ToolSearchHistory, start, err), nil, nil
	}
	if entries == nil {
		entries = []domain.SearchLogEntry{}
	}
	return s.jsonResult(ToolSearchHistory, start, entries), nil, nil
}

func (s *Server) rateLimitInfo() RateLimitInfo {
	st := s.svc.RateLimitStatus()
	info := RateLimitInfo{
		Remaining: st.Remaining,
		Total:     st.Total,
		ResetTime: st.ResetAt.UTC().Format(time.RFC3339),
		ResetIn:   max(0, st.ResetAt.Sub(s.now()).Milliseconds()),
	}
	if st.Remaining < lowRemainingThreshold {
		info.Warning = "Low rate limit remaining"
	}
	return info
}

func (s *Server) jsonResult(tool string, start time.Time, payload any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.toolError(tool, start, fmt.Errorf("encode result: %w", err))
	}
	s.metrics.RecordRequest(tool, "ok", s.now().Sub(start))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// toolError - ошибка уходит клиенту как результат с IsError, а не как сбой протокола
func (s *Server) toolError(tool string, start time.Time, err error) *mcp.CallToolResult {
	s.logger.Error("tool execution failed",
		zap.String("tool", tool),
		zap.Error(err),
	)
	s.metrics.RecordRequest(tool, "error", s.now().Sub(start))
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: errorMessage(err)}},
	}
}

func errorMessage(err error) string {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf("Rate limit exceeded. Try again after %s.", rl.ResetAt.UTC().Format(time.RFC3339))
	case errors.Is(err, domain.ErrAllSourcesExhausted):
		return "Search failed: " + err.Error()
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Query parameter is required and must be a non-empty string"
	case errors.Is(err, domain.ErrQueryTooLong):
		return fmt.Sprintf("Query is too long (max %d characters)", domain.MaxQueryLength)
	case errors.Is(err, domain.ErrHistoryDisabled):
		return "Search history is disabled (DATABASE_URL is not set)"
	default:
		return "Error: " + err.Error()
	}
}

func validateOptions(opts search.Options, threshold *float64) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if threshold != nil && (*threshold < 0 || *threshold > 1) {
		return fmt.Errorf("%w: relevanceThreshold must be between 0 and 1", search.ErrInvalidOptions)
	}
	return nil
}
