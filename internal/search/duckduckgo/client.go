package duckduckgo

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/search"
)

const (
	DefaultAPIURL  = "https://api.duckduckgo.com/"
	DefaultLiteURL = "https://lite.duckduckgo.com/lite/"

	SourceLabel     = "DuckDuckGo"
	LiteSourceLabel = "DuckDuckGo HTML"

	siteURL  = "https://duckduckgo.com"
	siteHost = "duckduckgo.com"
)

type Option func(*Client)

func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = u }
}

func WithLiteURL(u string) Option {
	return func(c *Client) { c.liteURL = u }
}

// Client - instant answer API, при пустом ответе идем в lite-версию сайта
type Client struct {
	apiURL     string
	liteURL    string
	maxResults int
	transport  search.Transport
	logger     *zap.Logger
	now        func() time.Time
}

func New(cfg search.Config, transport search.Transport, logger *zap.Logger, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		apiURL:     DefaultAPIURL,
		liteURL:    DefaultLiteURL,
		maxResults: cfg.MaxResults,
		transport:  transport,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return search.EngineDuckDuckGo
}

type instantAnswer struct {
	Heading        string         `json:"Heading"`
	Abstract       string         `json:"Abstract"`
	AbstractURL    string         `json:"AbstractURL"`
	AbstractSource string         `json:"AbstractSource"`
	Image          string         `json:"Image"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
	Icon     *struct {
		URL string `json:"URL"`
	} `json:"Icon"`
}

func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	startTime := c.now()
	limit := req.Limit(c.maxResults)

	c.logger.Debug("starting duckduckgo search",
		zap.String("query", req.Query),
		zap.Int("limit", limit),
	)

	answer, err := c.instantAnswer(ctx, req)
	if err != nil {
		c.logger.Error("duckduckgo api request failed", zap.Error(err))
		return nil, err
	}

	results := c.answerResults(req.Query, answer, limit)
	c.logger.Debug("duckduckgo instant answer parsed",
		zap.Bool("has_abstract", answer.Abstract != ""),
		zap.Int("related_topics", len(answer.RelatedTopics)),
		zap.Int("results", len(results)),
	)

	if len(results) == 0 {
		c.logger.Info("no instant answers, falling back to lite html")
		results, err = c.liteSearch(ctx, req.Query, limit)
		if err != nil {
			c.logger.Error("duckduckgo lite search failed", zap.Error(err))
			return nil, search.NewSourceError(c.Name(), search.KindMalformedResponse, "lite fallback", err)
		}
	}

	if len(results) > limit {
		results = results[:limit]
	}

	resp := &search.Response{
		Query:            req.Query,
		Results:          results,
		SearchEngine:     c.Name(),
		Timestamp:        c.now().UTC(),
		ProcessingTimeMs: c.now().Sub(startTime).Milliseconds(),
	}
	c.logger.Info("duckduckgo search completed",
		zap.Int("results", len(resp.Results)),
		zap.Int64("processing_ms", resp.ProcessingTimeMs),
	)
	return resp, nil
}

func (c *Client) instantAnswer(ctx context.Context, req search.Request) (*instantAnswer, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")
	params.Set("no_redirect", "1")
	if req.Options.SafeSearch {
		params.Set("safe_search", "strict")
	} else {
		params.Set("safe_search", "moderate")
	}

	httpResp, err := c.transport.Do(ctx, search.HTTPRequest{URL: c.apiURL, Query: params})
	if err != nil {
		return nil, search.Tag(c.Name(), err)
	}
	if !httpResp.OK() {
		return nil, search.StatusError(c.Name(), httpResp.StatusCode, httpResp.Body)
	}

	var answer instantAnswer
	if err := json.Unmarshal(httpResp.Body, &answer); err != nil {
		return nil, search.NewSourceError(c.Name(), search.KindMalformedResponse, "unmarshal instant answer", err)
	}
	return &answer, nil
}

func (c *Client) answerResults(query string, answer *instantAnswer, limit int) []search.Result {
	results := make([]search.Result, 0, limit)

	if abstract := strings.TrimSpace(answer.Abstract); abstract != "" {
		title := strings.TrimSpace(answer.Heading)
		if title == "" {
			title = query
		}
		link := strings.TrimSpace(answer.AbstractURL)
		if _, ok := search.ParseAbsoluteURL(link); !ok {
			link = siteURL + "/?q=" + url.QueryEscape(query)
		}
		domain := answer.AbstractSource
		if domain == "" {
			domain = SourceLabel
		}
		results = append(results, search.Result{
			Title:    title,
			URL:      link,
			Snippet:  abstract,
			Source:   SourceLabel,
			Metadata: &search.Metadata{Domain: domain, Favicon: absoluteAsset(answer.Image)},
		})
	}

	topics := answer.RelatedTopics
	if len(topics) > limit {
		topics = topics[:limit]
	}
	for _, topic := range topics {
		text := strings.TrimSpace(topic.Text)
		if text == "" {
			continue
		}
		u, ok := search.ParseAbsoluteURL(topic.FirstURL)
		if !ok {
			continue
		}
		title, _, _ := strings.Cut(text, " - ")
		if title == "" {
			title = text
		}
		meta := &search.Metadata{Domain: u.Hostname()}
		if topic.Icon != nil {
			meta.Favicon = absoluteAsset(topic.Icon.URL)
		}
		results = append(results, search.Result{
			Title:    title,
			URL:      strings.TrimSpace(topic.FirstURL),
			Snippet:  text,
			Source:   SourceLabel,
			Metadata: meta,
		})
	}
	return results
}

// liteSearch - разбор html lite-версии: N-я ссылка в паре с N-м сниппетом
func (c *Client) liteSearch(ctx context.Context, query string, limit int) ([]search.Result, error) {
	form := url.Values{}
	form.Set("q", query)
	form.Set("s", "0")
	form.Set("dc", strconv.Itoa(limit))

	httpResp, err := c.transport.Do(ctx, search.HTTPRequest{
		Method: http.MethodPost,
		URL:    c.liteURL,
		Form:   form,
	})
	if err != nil {
		return nil, search.Tag(c.Name(), err)
	}
	if !httpResp.OK() {
		return nil, search.StatusError(c.Name(), httpResp.StatusCode, httpResp.Body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(httpResp.Body))
	if err != nil {
		return nil, err
	}

	type link struct{ title, href, host string }
	var links []link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := search.ParseAbsoluteURL(href)
		if !ok || isProviderHost(u.Hostname()) {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" {
			return
		}
		links = append(links, link{title: title, href: strings.TrimSpace(href), host: u.Hostname()})
	})

	var snippets []string
	doc.Find("td.result-snippet").Each(func(_ int, s *goquery.Selection) {
		snippets = append(snippets, strings.TrimSpace(s.Text()))
	})

	n := min(len(links), len(snippets), limit)
	results := make([]search.Result, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, search.Result{
			Title:    links[i].title,
			URL:      links[i].href,
			Snippet:  snippets[i],
			Source:   LiteSourceLabel,
			Metadata: &search.Metadata{Domain: links[i].host},
		})
	}
	c.logger.Debug("duckduckgo lite parsed",
		zap.Int("links", len(links)),
		zap.Int("snippets", len(snippets)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func isProviderHost(host string) bool {
	host = strings.ToLower(host)
	return host == siteHost || strings.HasSuffix(host, "."+siteHost)
}

// картинки в ответе API относительные (/i/xxx.png)
func absoluteAsset(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if _, ok := search.ParseAbsoluteURL(p); ok {
		return p
	}
	if strings.HasPrefix(p, "/") {
		return siteURL + p
	}
	return ""
}
