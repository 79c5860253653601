package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/search"
)

const (
	// лимит телеграма на одно сообщение
	maxMessageLen = 4096

	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

type Handler struct {
	bot *Bot
	now func() time.Time
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot, now: time.Now}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg)
		return
	}
	h.handleSearch(ctx, msg, normalizeSpaces(msg.Text), search.Options{})
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "search":
		h.handleSearchCommand(ctx, msg)
	case "limits":
		h.handleLimits(ctx, msg)
	case "stats":
		h.handleStats(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	default:
		h.bot.Send(msg.Chat.ID, "Неизвестная команда. Используйте /help для справки.")
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	st := h.bot.searchService.RateLimitStatus()
	h.bot.Send(msg.Chat.ID, fmt.Sprintf(
		"Добро пожаловать! Я ищу в Google, DuckDuckGo и по запасным сайтам, пока кто-нибудь не ответит.\n\nДоступно запросов: %d из %d.\n\nИспользуйте /help для просмотра доступных команд.",
		st.Remaining, st.Total,
	))
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	helpText := `<b>Доступные команды:</b>

/start - Приветствие
/help - Показать эту справку
/search запрос - Поиск с параметрами
/limits - Сколько запросов осталось
/stats - Статистика поисковых движков
/history [N] - Последние поиски

<b>Параметры поиска:</b>
• n:5 - количество результатов (1-50)
• lang:en - язык результатов
• region:us - регион
• safe:on - безопасный поиск
• time:week - период: day, week, month, year

<b>Как использовать:</b>
Просто отправьте текст, и я найду его с настройками по умолчанию.

<b>Примеры:</b>
• rust programming language
• /search golang generics n:3 lang:en
• /search новости ИИ time:day safe:on`

	h.bot.Send(msg.Chat.ID, helpText)
}

func (h *Handler) handleSearchCommand(ctx context.Context, msg *tgbotapi.Message) {
	query, opts, err := ParseSearchArgs(msg.CommandArguments())
	if err != nil {
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}
	if query == "" {
		h.bot.Send(msg.Chat.ID, "Укажите запрос: /search golang generics n:5")
		return
	}
	h.handleSearch(ctx, msg, query, opts)
}

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message, query string, opts search.Options) {
	h.bot.SendTyping(msg.Chat.ID)

	h.bot.logger.Info("processing search",
		zap.Int64("user_id", msg.From.ID),
		zap.Int("max_results", opts.MaxResults),
		zap.String("language", opts.Language),
		zap.String("time_range", string(opts.TimeRange)),
	)

	resp, err := h.bot.searchService.Search(ctx, query, opts)
	if err != nil {
		h.bot.logger.Warn("search failed",
			zap.Error(err),
			zap.Int64("user_id", msg.From.ID),
		)
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	h.sendLong(msg.Chat.ID, FormatSearchResponse(resp))
}

func (h *Handler) handleLimits(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.Send(msg.Chat.ID, FormatRateLimit(h.bot.searchService.RateLimitStatus(), h.now()))
}

func (h *Handler) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.Send(msg.Chat.ID, FormatPerformance(h.bot.searchService.PerformanceStatus()))
}

func (h *Handler) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	limit := ParseLimit(msg.CommandArguments(), defaultHistoryLimit, maxHistoryLimit)

	entries, err := h.bot.searchService.SearchHistory(ctx, limit)
	if err != nil {
		h.bot.logger.Error("failed to load search history", zap.Error(err))
		h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
		return
	}

	if len(entries) == 0 {
		h.bot.Send(msg.Chat.ID, "История поиска пуста.")
		return
	}

	h.sendLong(msg.Chat.ID, FormatHistory(entries))
}

func (h *Handler) sendLong(chatID int64, text string) {
	for _, m := range SplitMessage(text, maxMessageLen) {
		if err := h.bot.Send(chatID, m); err != nil {
			h.bot.logger.Error("failed to send message", zap.Error(err))
		}
	}
}

func mapErrorToMessage(err error) string {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf("Достигнут общий лимит запросов. Следующий слот освободится %s UTC.", rl.ResetAt.UTC().Format("2006-01-02 15:04"))
	case errors.Is(err, domain.ErrAllSourcesExhausted):
		return "Ни один поисковый движок не вернул результатов. Попробуйте изменить запрос."
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Пустой запрос. Введите ваш вопрос."
	case errors.Is(err, domain.ErrQueryTooLong):
		return fmt.Sprintf("Запрос слишком длинный. Максимум %d символов.", domain.MaxQueryLength)
	case errors.Is(err, search.ErrInvalidOptions):
		return "Некорректные параметры поиска. Используйте /help для справки."
	case errors.Is(err, domain.ErrHistoryDisabled):
		return "История поиска отключена."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Поиск прерван. Попробуйте позже."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}
