package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/service"
)

func TestFormatSearchResponse(t *testing.T) {
	resp := &search.Response{
		Query: "rust <lang>",
		Results: []search.Result{
			{
				Title:      "Rust & Cargo",
				URL:        "https://www.rust-lang.org/?a=1&b=2",
				Snippet:    "A language empowering everyone",
				DisplayURL: "www.rust-lang.org",
			},
			{
				Title:    "No snippet",
				URL:      "https://doc.rust-lang.org/book/",
				Metadata: &search.Metadata{Domain: "doc.rust-lang.org"},
			},
		},
		SearchEngine:     search.EngineDuckDuckGo,
		ProcessingTimeMs: 321,
	}

	result := FormatSearchResponse(resp)

	if !strings.Contains(result, "rust &lt;lang&gt;") {
		t.Error("FormatSearchResponse() should escape query")
	}
	if !strings.Contains(result, `1. <a href="https://www.rust-lang.org/?a=1&amp;b=2">Rust &amp; Cargo</a>`) {
		t.Errorf("FormatSearchResponse() should contain escaped link, got %q", result)
	}
	if !strings.Contains(result, "A language empowering everyone") {
		t.Error("FormatSearchResponse() should contain snippet")
	}
	if !strings.Contains(result, "<i>doc.rust-lang.org</i>") {
		t.Error("FormatSearchResponse() should fall back to metadata domain")
	}
	if !strings.Contains(result, "Движок: duckduckgo, 321 мс") {
		t.Error("FormatSearchResponse() should contain engine footer")
	}
}

func TestFormatRateLimit(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	st := ratelimit.Status{Remaining: 12, Total: 500, ResetAt: now.Add(90 * time.Minute)}

	result := FormatRateLimit(st, now)

	if !strings.Contains(result, "Осталось: 12 из 500") {
		t.Error("FormatRateLimit() should contain remaining")
	}
	if !strings.Contains(result, "2026-05-01 11:30:00 UTC") {
		t.Errorf("FormatRateLimit() should contain reset time, got %q", result)
	}
	if !strings.Contains(result, "через 1h30m0s") {
		t.Errorf("FormatRateLimit() should contain wait time, got %q", result)
	}
}

func TestFormatPerformance(t *testing.T) {
	perf := service.PerformanceStatus{
		RateLimit: ratelimit.Status{Remaining: 480, Total: 500},
		EngineStats: map[string]domain.EngineStatsSnapshot{
			search.EngineScraping:   {Success: 0, Failure: 2, SuccessRate: 0, AvgProcessingTime: 3000},
			search.EngineDuckDuckGo: {Success: 9, Failure: 1, SuccessRate: 0.9, AvgProcessingTime: 250},
		},
	}

	result := FormatPerformance(perf)

	ddg := strings.Index(result, "duckduckgo")
	scraping := strings.Index(result, "scraping")
	if ddg < 0 || scraping < 0 || ddg > scraping {
		t.Errorf("FormatPerformance() should list engines sorted by name, got %q", result)
	}
	if !strings.Contains(result, "успешно: 9, ошибок: 1, 90%") {
		t.Error("FormatPerformance() should contain counters")
	}
	if !strings.Contains(result, "Лимит: 480 из 500") {
		t.Error("FormatPerformance() should contain rate limit")
	}
}

func TestFormatPerformance_Empty(t *testing.T) {
	result := FormatPerformance(service.PerformanceStatus{})

	if !strings.Contains(result, "Поисков еще не было.") {
		t.Errorf("FormatPerformance() = %q, want empty notice", result)
	}
}

func TestFormatHistory(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 15, 0, 0, time.UTC)
	entries := []domain.SearchLogEntry{
		{Query: "golang <generics>", Engine: search.EngineGoogle, Status: domain.SearchStatusSuccess, ResultCount: 10, CreatedAt: at},
		{Query: "nothing", Status: domain.SearchStatusExhausted, CreatedAt: at},
		{Query: "too many", Status: domain.SearchStatusRateLimited, CreatedAt: at},
	}

	result := FormatHistory(entries)

	if !strings.Contains(result, "golang &lt;generics&gt;") {
		t.Error("FormatHistory() should escape query")
	}
	if !strings.Contains(result, "[google, 10 рез.]") {
		t.Error("FormatHistory() should contain engine and result count")
	}
	if !strings.Contains(result, "[нет результатов]") || !strings.Contains(result, "[лимит]") {
		t.Error("FormatHistory() should describe failed searches")
	}
	if !strings.Contains(result, "2026-05-01 10:15") {
		t.Error("FormatHistory() should contain time")
	}
	if !strings.Contains(result, "Всего: 3") {
		t.Error("FormatHistory() should contain total count")
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   int // number of parts
	}{
		{"short message", "Hello", 100, 1},
		{"exact length", "Hello", 5, 1},
		{"split needed", "Hello World Test", 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMessage(tt.text, tt.maxLen)
			if len(got) != tt.want {
				t.Errorf("SplitMessage() parts = %v, want %v", len(got), tt.want)
			}
		})
	}
}

func TestSplitMessage_HTMLTags(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "link tag",
			text: `Text before <a href="https://example.com/very/long/url">link text</a> text after`,
		},
		{
			name: "bold tag",
			text: `Some text <b>bold text here</b> more text`,
		},
		{
			name: "multiple tags",
			text: `<b>Title</b>\n<a href="https://example.com">Link</a>\nMore text here`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(tt.text, 30)

			for i, part := range parts {
				openCount := strings.Count(part, "<")
				closeCount := strings.Count(part, ">")

				if openCount != closeCount {
					t.Errorf("Part %d has unbalanced tags (open=%d, close=%d): %q",
						i, openCount, closeCount, part)
				}
			}
		})
	}
}

func TestIsInsideHTMLTag(t *testing.T) {
	tests := []struct {
		text string
		pos  int
		want bool
	}{
		{`<a href="url">text</a>`, 5, true},   // внутри <a href="...">
		{`<a href="url">text</a>`, 15, false}, // в "text"
		{`text <b>bold</b>`, 0, false},        // до тегов
		{`text <b>bold</b>`, 6, true},         // внутри <b>
		{`text <b>bold</b>`, 9, false},        // в "bold"
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := isInsideHTMLTag(tt.text, tt.pos)
			if got != tt.want {
				t.Errorf("isInsideHTMLTag(%q, %d) = %v, want %v", tt.text, tt.pos, got, tt.want)
			}
		})
	}
}

func TestGetHealthIcon(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "●"},
		{0.8, "●"},
		{0.5, "◐"},
		{0.1, "○"},
	}

	for _, tt := range tests {
		if got := getHealthIcon(tt.rate); got != tt.want {
			t.Errorf("getHealthIcon(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestTruncateURL(t *testing.T) {
	tests := []struct {
		url    string
		maxLen int
		want   string
	}{
		{"https://example.com", 50, "https://example.com"},
		{"https://example.com/very/long/path", 20, "https://example.c..."},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := truncateURL(tt.url, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncateURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
