package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/service"
)

const snippetMaxRunes = 300

func FormatSearchResponse(resp *search.Response) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Результаты по запросу:</b> %s\n\n", html.EscapeString(resp.Query)))

	for i, r := range resp.Results {
		escapedURL := html.EscapeString(r.URL)
		sb.WriteString(fmt.Sprintf("%d. <a href=\"%s\">%s</a>\n",
			i+1,
			escapedURL,
			html.EscapeString(r.Title),
		))
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			sb.WriteString("   " + html.EscapeString(search.Truncate(snippet, snippetMaxRunes)) + "\n")
		}
		sb.WriteString(fmt.Sprintf("   <i>%s</i>\n\n", html.EscapeString(truncateURL(displayURL(r), 50))))
	}

	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString(fmt.Sprintf("Движок: %s, %d мс", html.EscapeString(resp.SearchEngine), resp.ProcessingTimeMs))
	return sb.String()
}

func FormatRateLimit(st ratelimit.Status, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("<b>Лимит запросов:</b>\n\n")
	sb.WriteString(fmt.Sprintf("Осталось: %d из %d\n", st.Remaining, st.Total))
	sb.WriteString(fmt.Sprintf("Ближайший слот: %s UTC", st.ResetAt.UTC().Format("2006-01-02 15:04:05")))
	if wait := st.ResetAt.Sub(now); wait > 0 {
		sb.WriteString(fmt.Sprintf(" (через %s)", wait.Round(time.Second)))
	}
	return sb.String()
}

func FormatPerformance(perf service.PerformanceStatus) string {
	var sb strings.Builder
	sb.WriteString("<b>Статистика движков:</b>\n\n")

	if len(perf.EngineStats) == 0 {
		sb.WriteString("Поисков еще не было.\n")
	}

	names := make([]string, 0, len(perf.EngineStats))
	for name := range perf.EngineStats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := perf.EngineStats[name]
		sb.WriteString(fmt.Sprintf("%s %s\n   успешно: %d, ошибок: %d, %.0f%%, среднее %d мс\n\n",
			getHealthIcon(st.SuccessRate),
			html.EscapeString(name),
			st.Success,
			st.Failure,
			st.SuccessRate*100,
			st.AvgProcessingTime,
		))
	}

	sb.WriteString(fmt.Sprintf("Лимит: %d из %d", perf.RateLimit.Remaining, perf.RateLimit.Total))
	return sb.String()
}

func FormatHistory(entries []domain.SearchLogEntry) string {
	var sb strings.Builder
	sb.WriteString("<b>Последние поиски:</b>\n\n")

	for i, e := range entries {
		detail := e.Engine
		switch e.Status {
		case domain.SearchStatusSuccess:
			detail = fmt.Sprintf("%s, %d рез.", e.Engine, e.ResultCount)
		case domain.SearchStatusExhausted:
			detail = "нет результатов"
		case domain.SearchStatusRateLimited:
			detail = "лимит"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s\n   %s [%s]\n",
			i+1,
			getStatusIcon(e.Status),
			html.EscapeString(search.Truncate(e.Query, 80)),
			e.CreatedAt.UTC().Format("2006-01-02 15:04"),
			html.EscapeString(detail),
		))
	}

	sb.WriteString(fmt.Sprintf("\nВсего: %d", len(entries)))
	return sb.String()
}

func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = maxLen
		}

		messages = append(messages, text[:splitPoint])
		text = text[splitPoint:]
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// ищем пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if i >= len(text) {
			continue
		}
		if isInsideHTMLTag(text, i) {
			continue
		}

		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	// внутри тега - ищем конец
	if maxLen < len(text) && isInsideHTMLTag(text, maxLen) {
		for i := maxLen; i < len(text); i++ {
			if text[i] == '>' {
				for j := i + 1; j < len(text) && j < i+50; j++ {
					if text[j] == '\n' || text[j] == ' ' {
						return j + 1
					}
				}
				return i + 1
			}
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	return maxLen
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}

func getHealthIcon(successRate float64) string {
	switch {
	case successRate >= 0.8:
		return "●"
	case successRate >= 0.4:
		return "◐"
	default:
		return "○"
	}
}

func getStatusIcon(status domain.SearchStatus) string {
	switch status {
	case domain.SearchStatusSuccess:
		return "●"
	case domain.SearchStatusExhausted:
		return "○"
	default:
		return "◌"
	}
}

func displayURL(r search.Result) string {
	if r.DisplayURL != "" {
		return r.DisplayURL
	}
	if r.Metadata != nil && r.Metadata.Domain != "" {
		return r.Metadata.Domain
	}
	return r.URL
}

func truncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}
