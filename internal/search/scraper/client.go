package scraper

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/search"
)

const (
	DefaultStartpageURL = "https://www.startpage.com/sp/search"
	DefaultSearxURL     = "https://searx.be/search"
)

// Site - одна страница выдачи, которую разбираем
type Site struct {
	Name  string
	URL   string
	Param string
	// доп. параметры запроса под конкретный сайт
	Extra func(req search.Request) url.Values
	Parse func(doc *goquery.Document) []search.Result
}

type Option func(*Client)

// WithSites заменяет список сайтов целиком, порядок важен
func WithSites(sites ...Site) Option {
	return func(c *Client) { c.sites = sites }
}

func WithStartpageURL(u string) Option {
	return func(c *Client) { c.startpageURL = u }
}

func WithSearxURL(u string) Option {
	return func(c *Client) { c.searxURL = u }
}

type Client struct {
	startpageURL string
	searxURL     string
	sites        []Site
	maxResults   int
	transport    search.Transport
	logger       *zap.Logger
	now          func() time.Time
}

func New(cfg search.Config, transport search.Transport, logger *zap.Logger, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		startpageURL: DefaultStartpageURL,
		searxURL:     DefaultSearxURL,
		maxResults:   cfg.MaxResults,
		transport:    transport,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sites == nil {
		c.sites = []Site{Startpage(c.startpageURL), Searx(c.searxURL)}
	}
	return c
}

func (c *Client) Name() string {
	return search.EngineScraping
}

// Search никогда не возвращает ошибку из-за упавших сайтов:
// если не ответил ни один, отдаем пустой ответ.
func (c *Client) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	startTime := c.now()
	limit := req.Limit(c.maxResults)

	var all []search.Result
	for _, site := range c.sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := c.scrape(ctx, site, req)
		if err != nil {
			c.logger.Warn("failed to scrape site",
				zap.String("site", site.Name),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("scraped site",
			zap.String("site", site.Name),
			zap.Int("results", len(results)),
		)
		all = append(all, results...)
		if len(all) >= limit {
			break
		}
	}

	results := Dedupe(all)
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
	c.logger.Info("web scraper search completed",
		zap.Int("results", len(resp.Results)),
		zap.Int64("processing_ms", resp.ProcessingTimeMs),
	)
	return resp, nil
}

func (c *Client) scrape(ctx context.Context, site Site, req search.Request) ([]search.Result, error) {
	params := url.Values{}
	params.Set(site.Param, req.Query)
	if site.Extra != nil {
		for k, vals := range site.Extra(req) {
			for _, v := range vals {
				params.Add(k, v)
			}
		}
	}

	httpResp, err := c.transport.Do(ctx, search.HTTPRequest{
		URL:    site.URL,
		Query:  params,
		Header: browserHeaders(),
	})
	if err != nil {
		return nil, search.Tag(c.Name(), err)
	}
	if !httpResp.OK() {
		return nil, search.StatusError(c.Name(), httpResp.StatusCode, nil)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(httpResp.Body))
	if err != nil {
		return nil, search.NewSourceError(c.Name(), search.KindMalformedResponse, "parse "+site.Name, err)
	}
	return site.Parse(doc), nil
}

func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	return h
}

func Startpage(baseURL string) Site {
	return Site{
		Name:  "Startpage",
		URL:   baseURL,
		Param: "query",
		Extra: func(search.Request) url.Values {
			return url.Values{"cat": {"web"}, "pl": {"opensearch"}}
		},
		Parse: func(doc *goquery.Document) []search.Result {
			var results []search.Result
			doc.Find(".w-gl__result").Each(func(_ int, s *goquery.Selection) {
				titleEl := s.Find(".w-gl__result-title a").First()
				href, _ := titleEl.Attr("href")
				r, ok := newResult(
					titleEl.Text(),
					href,
					s.Find(".w-gl__description").First().Text(),
					"Startpage",
				)
				if !ok {
					return
				}
				r.DisplayURL = strings.TrimSpace(s.Find(".w-gl__result-url").First().Text())
				results = append(results, r)
			})
			return results
		},
	}
}

func Searx(baseURL string) Site {
	return Site{
		Name:  "Searx",
		URL:   baseURL,
		Param: "q",
		Extra: func(req search.Request) url.Values {
			v := url.Values{}
			if lang := strings.TrimSpace(req.Options.Language); lang != "" {
				v.Set("language", lang)
			}
			if req.Options.SafeSearch {
				v.Set("safesearch", "1")
			}
			return v
		},
		Parse: func(doc *goquery.Document) []search.Result {
			var results []search.Result
			doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
				titleEl := s.Find(".result_header a, h3 a").First()
				snippetEl := s.Find(".result-content, .content").First()
				href, _ := titleEl.Attr("href")
				if r, ok := newResult(titleEl.Text(), href, snippetEl.Text(), "Searx"); ok {
					results = append(results, r)
				}
			})
			return results
		},
	}
}

// newResult - нужны заголовок, абсолютный url и сниппет, иначе пропускаем
func newResult(title, href, snippet, source string) (search.Result, bool) {
	title = strings.TrimSpace(title)
	snippet = strings.TrimSpace(snippet)
	u, ok := search.ParseAbsoluteURL(href)
	if title == "" || snippet == "" || !ok {
		return search.Result{}, false
	}
	return search.Result{
		Title:    title,
		URL:      strings.TrimSpace(href),
		Snippet:  snippet,
		Source:   source,
		Metadata: &search.Metadata{Domain: u.Hostname()},
	}, true
}

// Dedupe по паре (url, title), остается первое вхождение
func Dedupe(results []search.Result) []search.Result {
	type key struct{ url, title string }
	seen := make(map[key]struct{}, len(results))
	out := make([]search.Result, 0, len(results))
	for _, r := range results {
		k := key{r.URL, r.Title}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
