package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/service"
)

func TestMapErrorToMessage(t *testing.T) {
	reset := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", &domain.RateLimitError{ResetAt: reset, Total: 500}, "Достигнут общий лимит запросов. Следующий слот освободится 2026-03-01 12:30 UTC."},
		{"exhausted", &domain.ExhaustedError{Query: "q"}, "Ни один поисковый движок не вернул результатов. Попробуйте изменить запрос."},
		{"empty", domain.ErrEmptyQuery, "Пустой запрос. Введите ваш вопрос."},
		{"too long", domain.ErrQueryTooLong, "Запрос слишком длинный. Максимум 1000 символов."},
		{"bad options", fmt.Errorf("%w: n", search.ErrInvalidOptions), "Некорректные параметры поиска. Используйте /help для справки."},
		{"history", domain.ErrHistoryDisabled, "История поиска отключена."},
		{"canceled", fmt.Errorf("search canceled: %w", context.Canceled), "Поиск прерван. Попробуйте позже."},
		{"unknown", errors.New("some random error"), "Произошла ошибка. Попробуйте позже."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErrorToMessage(tt.err)
			if got != tt.want {
				t.Errorf("mapErrorToMessage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapErrorToMessage_WrappedErrors(t *testing.T) {
	wrappedErr := errors.Join(errors.New("context"), domain.ErrEmptyQuery)
	got := mapErrorToMessage(wrappedErr)
	want := "Пустой запрос. Введите ваш вопрос."
	if got != want {
		t.Errorf("mapErrorToMessage(wrapped) = %v, want %v", got, want)
	}
}

func createTestMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{
			ID:       userID,
			UserName: "testuser",
		},
		Chat: &tgbotapi.Chat{
			ID: userID,
		},
		Text: text,
	}
	// сущность bot_command, иначе IsCommand() вернет false
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.IndexByte(text, ' '); i > 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func TestHandler_PlainText(t *testing.T) {
	svc := &MockSearchService{}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "  rust   programming language "))

	if svc.CallCount != 1 {
		t.Fatalf("CallCount = %d, want 1", svc.CallCount)
	}
	if svc.LastQuery != "rust programming language" {
		t.Errorf("Query = %q, want 'rust programming language'", svc.LastQuery)
	}
	if svc.LastOptions != (search.Options{}) {
		t.Errorf("Options = %+v, want defaults", svc.LastOptions)
	}

	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Mock result") {
		t.Errorf("sent = %v, want formatted results", texts)
	}
	if api.actions != 1 {
		t.Errorf("typing actions = %d, want 1", api.actions)
	}
}

func TestHandler_SearchCommand(t *testing.T) {
	svc := &MockSearchService{}
	bot, _ := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "/search golang generics n:3 lang:EN safe:on time:week"))

	if svc.CallCount != 1 {
		t.Fatalf("CallCount = %d, want 1", svc.CallCount)
	}
	if svc.LastQuery != "golang generics" {
		t.Errorf("Query = %q, want 'golang generics'", svc.LastQuery)
	}
	want := search.Options{MaxResults: 3, Language: "en", SafeSearch: true, TimeRange: search.TimeRangeWeek}
	if svc.LastOptions != want {
		t.Errorf("Options = %+v, want %+v", svc.LastOptions, want)
	}
}

func TestHandler_SearchCommandWithoutQuery(t *testing.T) {
	svc := &MockSearchService{}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "/search n:3"))

	if svc.CallCount != 0 {
		t.Errorf("CallCount = %d, want 0", svc.CallCount)
	}
	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Укажите запрос") {
		t.Errorf("sent = %v, want usage hint", texts)
	}
}

func TestHandler_SearchCommandBadOptions(t *testing.T) {
	svc := &MockSearchService{}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "/search golang n:100"))

	if svc.CallCount != 0 {
		t.Errorf("CallCount = %d, want 0", svc.CallCount)
	}
	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Некорректные параметры") {
		t.Errorf("sent = %v, want options error", texts)
	}
}

func TestHandler_SearchFailure(t *testing.T) {
	svc := &MockSearchService{
		SearchFunc: func(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
			return nil, &domain.ExhaustedError{Query: query}
		},
	}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "nothing to find"))

	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Ни один поисковый движок") {
		t.Errorf("sent = %v, want exhausted message", texts)
	}
}

func TestHandler_LongResponseIsSplit(t *testing.T) {
	svc := &MockSearchService{
		SearchFunc: func(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
			results := make([]search.Result, 40)
			for i := range results {
				results[i] = search.Result{
					Title:   fmt.Sprintf("Result %d", i),
					URL:     fmt.Sprintf("https://example.com/%d", i),
					Snippet: strings.Repeat("word ", 50),
				}
			}
			return &search.Response{Query: query, Results: results, SearchEngine: search.EngineScraping}, nil
		},
	}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(123, "many"))

	texts := api.texts()
	if len(texts) < 2 {
		t.Fatalf("sent %d messages, want split into several", len(texts))
	}
	for i, text := range texts {
		if len(text) > maxMessageLen {
			t.Errorf("part %d length = %d, exceeds %d", i, len(text), maxMessageLen)
		}
	}
}

func TestHandler_Limits(t *testing.T) {
	svc := &MockSearchService{Status: ratelimit.Status{Remaining: 7, Total: 500, ResetAt: time.Now().Add(time.Hour)}}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/limits"))

	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Осталось: 7 из 500") {
		t.Errorf("sent = %v, want limits", texts)
	}
}

func TestHandler_Stats(t *testing.T) {
	svc := &MockSearchService{Perf: service.PerformanceStatus{
		RateLimit: ratelimit.Status{Remaining: 499, Total: 500},
		EngineStats: map[string]domain.EngineStatsSnapshot{
			search.EngineDuckDuckGo: {Success: 3, Failure: 1, SuccessRate: 0.75, AvgProcessingTime: 420},
		},
	}}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/stats"))

	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "duckduckgo") || !strings.Contains(texts[0], "среднее 420 мс") {
		t.Errorf("sent = %v, want engine stats", texts)
	}
}

func TestHandler_History(t *testing.T) {
	svc := &MockSearchService{
		HistoryFunc: func(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
			return []domain.SearchLogEntry{
				{Query: "golang", Engine: search.EngineDuckDuckGo, Status: domain.SearchStatusSuccess, ResultCount: 5, CreatedAt: time.Now()},
			}, nil
		},
	}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/history 3"))

	if svc.LastLimit != 3 {
		t.Errorf("limit = %d, want 3", svc.LastLimit)
	}
	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "golang") {
		t.Errorf("sent = %v, want history", texts)
	}
}

func TestHandler_HistoryDisabled(t *testing.T) {
	svc := &MockSearchService{}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/history"))

	if svc.LastLimit != defaultHistoryLimit {
		t.Errorf("limit = %d, want %d", svc.LastLimit, defaultHistoryLimit)
	}
	texts := api.texts()
	if len(texts) != 1 || texts[0] != "История поиска отключена." {
		t.Errorf("sent = %v, want disabled message", texts)
	}
}

func TestHandler_UnknownCommand(t *testing.T) {
	svc := &MockSearchService{}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/quick test"))

	if svc.CallCount != 0 {
		t.Errorf("CallCount = %d, want 0", svc.CallCount)
	}
	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Неизвестная команда") {
		t.Errorf("sent = %v, want unknown command", texts)
	}
}

func TestHandler_StartAndHelp(t *testing.T) {
	svc := &MockSearchService{Status: ratelimit.Status{Remaining: 500, Total: 500}}
	bot, api := createTestBot(svc)
	handler := NewHandler(bot)

	handler.HandleMessage(context.Background(), createTestMessage(1, "/start"))
	handler.HandleMessage(context.Background(), createTestMessage(1, "/help"))

	texts := api.texts()
	if len(texts) != 2 {
		t.Fatalf("sent %d messages, want 2", len(texts))
	}
	if !strings.Contains(texts[0], "500 из 500") {
		t.Errorf("start = %q, want remaining quota", texts[0])
	}
	if !strings.Contains(texts[1], "/search") || !strings.Contains(texts[1], "time:week") {
		t.Errorf("help = %q, want command list", texts[1])
	}
}
