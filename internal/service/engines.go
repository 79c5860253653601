package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/search/duckduckgo"
	"github.com/kitbuilder587/crawldock/internal/search/google"
	"github.com/kitbuilder587/crawldock/internal/search/scraper"
)

// EngineEndpoints - переопределение адресов апстримов; пустое поле = прод
type EngineEndpoints struct {
	GoogleURL        string
	GoogleRetryDelay time.Duration
	DuckDuckGoAPIURL string
	DuckDuckGoLite   string
	StartpageURL     string
	SearxURL         string
}

// NewEngineFactory - google, duckduckgo, scraping поверх одного http-транспорта
func NewEngineFactory(logger *zap.Logger, ep EngineEndpoints) EngineFactory {
	return func(cfg search.Config) []search.Engine {
		cfg = cfg.WithDefaults()
		transport := search.NewHTTPTransport(cfg.Timeout, cfg.UserAgent)

		var googleOpts []google.Option
		if ep.GoogleURL != "" {
			googleOpts = append(googleOpts, google.WithBaseURL(ep.GoogleURL))
		}
		if ep.GoogleRetryDelay > 0 {
			googleOpts = append(googleOpts, google.WithRetryDelay(ep.GoogleRetryDelay))
		}

		var ddgOpts []duckduckgo.Option
		if ep.DuckDuckGoAPIURL != "" {
			ddgOpts = append(ddgOpts, duckduckgo.WithAPIURL(ep.DuckDuckGoAPIURL))
		}
		if ep.DuckDuckGoLite != "" {
			ddgOpts = append(ddgOpts, duckduckgo.WithLiteURL(ep.DuckDuckGoLite))
		}

		var scraperOpts []scraper.Option
		if ep.StartpageURL != "" {
			scraperOpts = append(scraperOpts, scraper.WithStartpageURL(ep.StartpageURL))
		}
		if ep.SearxURL != "" {
			scraperOpts = append(scraperOpts, scraper.WithSearxURL(ep.SearxURL))
		}

		return []search.Engine{
			google.New(cfg, transport, logger.Named("google"), googleOpts...),
			duckduckgo.New(cfg, transport, logger.Named("duckduckgo"), ddgOpts...),
			scraper.New(cfg, transport, logger.Named("scraper"), scraperOpts...),
		}
	}
}
