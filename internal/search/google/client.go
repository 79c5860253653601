package google

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/search"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	SourceLabel    = "Google Custom Search"

	// API больше 10 за запрос не отдает
	apiMaxResults = 10

	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithRetryDelay - базовая задержка, между попытками ждем attempt*delay
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

type Client struct {
	apiKey      string
	engineID    string
	maxResults  int
	baseURL     string
	maxAttempts int
	retryDelay  time.Duration
	transport   search.Transport
	logger      *zap.Logger

	lastAttempts atomic.Int32
	now          func() time.Time
}

func New(cfg search.Config, transport search.Transport, logger *zap.Logger, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		apiKey:      cfg.GoogleAPIKey,
		engineID:    cfg.GoogleSearchEngineID,
		maxResults:  cfg.MaxResults,
		baseURL:     DefaultBaseURL,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		transport:   transport,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Debug("google engine initialized",
		zap.Bool("has_api_key", c.apiKey != ""),
		zap.Bool("has_engine_id", c.engineID != ""),
	)
	return c
}

func (c *Client) Name() string {
	return search.EngineGoogle
}

func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.engineID != ""
}

// Attempts - сколько попыток ушло на последний вызов Search
func (c *Client) Attempts() int {
	return int(c.lastAttempts.Load())
}

type googleResponse struct {
	Items             []googleItem `json:"items"`
	SearchInformation *struct {
		TotalResults string `json:"totalResults"`
	} `json:"searchInformation"`
}

type googleItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
	Pagemap     *struct {
		CseImage []struct {
			Src string `json:"src"`
		} `json:"cse_image"`
	} `json:"pagemap"`
}

func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	startTime := c.now()
	c.lastAttempts.Store(0)

	if !c.IsConfigured() {
		c.logger.Warn("google api credentials not provided")
		return nil, search.NewSourceError(c.Name(), search.KindNotConfigured, "google api credentials not configured", nil)
	}

	params := c.buildParams(req)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * c.retryDelay
			c.logger.Info("retrying google search",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		c.lastAttempts.Store(int32(attempt))

		resp, err := c.do(ctx, req.Query, params)
		if err == nil {
			resp.ProcessingTimeMs = c.now().Sub(startTime).Milliseconds()
			c.logger.Info("google search completed",
				zap.Int("results", len(resp.Results)),
				zap.Int64("total_results", resp.TotalResults),
				zap.Int("attempt", attempt),
				zap.Int64("processing_ms", resp.ProcessingTimeMs),
			)
			return resp, nil
		}

		lastErr = err
		retryable := search.IsRetryable(err)
		c.logger.Warn("google search attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Bool("retryable", retryable),
		)
		if !retryable || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) do(ctx context.Context, query string, params url.Values) (*search.Response, error) {
	httpResp, err := c.transport.Do(ctx, search.HTTPRequest{
		URL:   c.baseURL,
		Query: params,
	})
	if err != nil {
		return nil, search.Tag(c.Name(), err)
	}
	if !httpResp.OK() {
		return nil, search.StatusError(c.Name(), httpResp.StatusCode, httpResp.Body)
	}

	var payload googleResponse
	if err := json.Unmarshal(httpResp.Body, &payload); err != nil {
		return nil, search.NewSourceError(c.Name(), search.KindMalformedResponse, "unmarshal response", err)
	}

	return c.toSearchResponse(query, &payload), nil
}

func (c *Client) buildParams(req search.Request) url.Values {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", req.Query)
	params.Set("num", strconv.Itoa(min(req.Limit(c.maxResults), apiMaxResults)))
	if req.Options.SafeSearch {
		params.Set("safe", "active")
	} else {
		params.Set("safe", "off")
	}
	if lang := strings.TrimSpace(req.Options.Language); lang != "" {
		params.Set("lr", "lang_"+lang)
	}
	if region := strings.TrimSpace(req.Options.Region); region != "" {
		params.Set("gl", region)
	}
	if restrict := DateRestrict(req.Options.TimeRange); restrict != "" {
		params.Set("dateRestrict", restrict)
	}
	return params
}

// DateRestrict - неизвестный диапазон = без ограничения, не ошибка
func DateRestrict(r search.TimeRange) string {
	switch r {
	case search.TimeRangeDay:
		return "d1"
	case search.TimeRangeWeek:
		return "w1"
	case search.TimeRangeMonth:
		return "m1"
	case search.TimeRangeYear:
		return "y1"
	default:
		return ""
	}
}

func (c *Client) toSearchResponse(query string, resp *googleResponse) *search.Response {
	results := make([]search.Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		u, ok := search.ParseAbsoluteURL(item.Link)
		if !ok {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = query
		}

		meta := &search.Metadata{Domain: u.Hostname()}
		if item.Pagemap != nil && len(item.Pagemap.CseImage) > 0 {
			meta.Favicon = item.Pagemap.CseImage[0].Src
		}

		results = append(results, search.Result{
			Title:      title,
			URL:        strings.TrimSpace(item.Link),
			Snippet:    strings.TrimSpace(item.Snippet),
			DisplayURL: item.DisplayLink,
			Source:     SourceLabel,
			Metadata:   meta,
		})
	}

	var total int64
	if resp.SearchInformation != nil && resp.SearchInformation.TotalResults != "" {
		if n, err := strconv.ParseInt(resp.SearchInformation.TotalResults, 10, 64); err == nil {
			total = n
		}
	}

	return &search.Response{
		Query:        query,
		Results:      results,
		TotalResults: total,
		SearchEngine: c.Name(),
		Timestamp:    c.now().UTC(),
	}
}
