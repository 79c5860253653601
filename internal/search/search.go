package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// теги движков, попадают в Response.SearchEngine
const (
	EngineGoogle     = "google"
	EngineDuckDuckGo = "duckduckgo"
	EngineScraping   = "scraping"
)

const (
	MinMaxResults = 1
	MaxMaxResults = 50
)

// Engine - один источник поиска. Пустой список результатов это не ошибка.
type Engine interface {
	Name() string
	Search(ctx context.Context, req Request) (*Response, error)
}

// Configurable - движки, которым нужны ключи
type Configurable interface {
	IsConfigured() bool
}

type TimeRange string

const (
	TimeRangeDay   TimeRange = "day"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
	TimeRangeYear  TimeRange = "year"
)

func (r TimeRange) IsValid() bool {
	switch r {
	case TimeRangeDay, TimeRangeWeek, TimeRangeMonth, TimeRangeYear:
		return true
	default:
		return false
	}
}

// Options - подсказки от вызывающего, движок может часть проигнорировать
type Options struct {
	MaxResults int       `json:"maxResults,omitempty"`
	Language   string    `json:"language,omitempty"`
	Region     string    `json:"region,omitempty"`
	SafeSearch bool      `json:"safeSearch,omitempty"`
	TimeRange  TimeRange `json:"timeRange,omitempty"`
}

// Validate используется фронтендами. Ядро неизвестный TimeRange просто игнорирует.
func (o Options) Validate() error {
	if o.MaxResults != 0 && (o.MaxResults < MinMaxResults || o.MaxResults > MaxMaxResults) {
		return fmt.Errorf("%w: maxResults must be between %d and %d", ErrInvalidOptions, MinMaxResults, MaxMaxResults)
	}
	if o.TimeRange != "" && !o.TimeRange.IsValid() {
		return fmt.Errorf("%w: unknown time range %q", ErrInvalidOptions, o.TimeRange)
	}
	return nil
}

type Request struct {
	Query   string
	Options Options
}

// Limit - эффективный лимит: из запроса, иначе из конфига
func (r Request) Limit(fallback int) int {
	if r.Options.MaxResults > 0 {
		return r.Options.MaxResults
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxResults
}

type Metadata struct {
	Domain  string `json:"domain"`
	Favicon string `json:"favicon,omitempty"`
}

type Result struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Snippet    string    `json:"snippet"`
	DisplayURL string    `json:"displayUrl,omitempty"`
	Source     string    `json:"source,omitempty"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

type Response struct {
	Query            string    `json:"query"`
	Results          []Result  `json:"results"`
	TotalResults     int64     `json:"totalResults,omitempty"`
	SearchEngine     string    `json:"searchEngine"`
	Timestamp        time.Time `json:"timestamp"`
	ProcessingTimeMs int64     `json:"processingTime"`
}

// ParseAbsoluteURL - только http(s) с хостом, все остальное отбрасываем
func ParseAbsoluteURL(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// Hostname без порта; пустая строка если url кривой
func Hostname(raw string) string {
	u, ok := ParseAbsoluteURL(raw)
	if !ok {
		return ""
	}
	return u.Hostname()
}

// Truncate режет по рунам, не ломая utf-8
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
