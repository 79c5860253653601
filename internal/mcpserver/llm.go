package mcpserver

import (
	"fmt"
	"math"
	"strings"

	"github.com/kitbuilder587/crawldock/internal/search"
)

const (
	summaryMaxRunes = 200
	topSourcesCount = 3

	fastResponseMs = 1000
	slowResponseMs = 5000
)

// домены, которым даем небольшой бонус к релевантности
var authorityDomains = []string{"wikipedia.org", "stackoverflow.com"}

type LLMOptions struct {
	IncludeSummary bool
	// nil = без фильтра
	RelevanceThreshold *float64
}

type LLMResult struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
	Source    string  `json:"source"`
	Domain    string  `json:"domain"`
}

type LLMResponse struct {
	Query            string      `json:"query"`
	Results          []LLMResult `json:"results"`
	Summary          string      `json:"summary"`
	SearchEngine     string      `json:"searchEngine"`
	ProcessingTimeMs int64       `json:"processingTime"`
	Confidence       float64     `json:"confidence"`
}

// FormatForLLM - компактный вид ответа: короткие сниппеты, эвристическая
// релевантность и общая уверенность
func FormatForLLM(resp *search.Response, opts LLMOptions) *LLMResponse {
	results := make([]LLMResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		source := r.Source
		if source == "" {
			source = resp.SearchEngine
		}
		item := LLMResult{
			Title:     r.Title,
			URL:       r.URL,
			Summary:   search.Truncate(r.Snippet, summaryMaxRunes),
			Relevance: Relevance(r, resp.Query),
			Source:    source,
			Domain:    resultDomain(r),
		}
		if opts.RelevanceThreshold != nil && item.Relevance < *opts.RelevanceThreshold {
			continue
		}
		results = append(results, item)
	}

	var summary string
	if opts.IncludeSummary && len(results) > 0 {
		summary = buildSummary(resp, results)
	}

	return &LLMResponse{
		Query:            resp.Query,
		Results:          results,
		Summary:          summary,
		SearchEngine:     resp.SearchEngine,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		Confidence:       Confidence(results, resp.ProcessingTimeMs),
	}
}

// Relevance - совпадение запроса (или его первого слова) в заголовке и
// сниппете плюс бонус за известные домены, не больше 1
func Relevance(r search.Result, query string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	first := strings.Fields(q)[0]
	title := strings.ToLower(r.Title)
	snippet := strings.ToLower(r.Snippet)

	var score float64
	if strings.Contains(title, q) {
		score += 0.4
	}
	if strings.Contains(title, first) {
		score += 0.2
	}
	if strings.Contains(snippet, q) {
		score += 0.3
	}
	if strings.Contains(snippet, first) {
		score += 0.1
	}

	domain := resultDomain(r)
	for _, d := range authorityDomains {
		if strings.Contains(domain, d) {
			score += 0.1
		}
	}
	return round2(math.Min(1, score))
}

func Confidence(results []LLMResult, processingMs int64) float64 {
	if len(results) == 0 {
		return 0
	}

	confidence := 0.5
	confidence += math.Min(0.3, float64(len(results))*0.05)

	switch {
	case processingMs < fastResponseMs:
		confidence += 0.1
	case processingMs > slowResponseMs:
		confidence -= 0.1
	}

	var sum float64
	for _, r := range results {
		sum += r.Relevance
	}
	confidence += sum / float64(len(results)) * 0.1

	return round2(math.Min(1, math.Max(0, confidence)))
}

func buildSummary(resp *search.Response, results []LLMResult) string {
	top := make([]string, 0, topSourcesCount)
	for _, r := range results[:min(topSourcesCount, len(results))] {
		top = append(top, r.Domain)
	}
	return fmt.Sprintf("Found %d relevant results for %q. Top sources include: %s. Search completed in %dms using %s.",
		len(results), resp.Query, strings.Join(top, ", "), resp.ProcessingTimeMs, resp.SearchEngine)
}

func resultDomain(r search.Result) string {
	if r.Metadata != nil && r.Metadata.Domain != "" {
		return r.Metadata.Domain
	}
	return search.Hostname(r.URL)
}

// до сотых
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
