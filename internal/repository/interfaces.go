package repository

import (
	"context"

	"github.com/kitbuilder587/crawldock/internal/domain"
)

// SearchLogRepository - журнал поисков. Необязателен: без DATABASE_URL
// сервис работает без него.
type SearchLogRepository interface {
	Record(ctx context.Context, entry *domain.SearchLogEntry) error
	// Recent - последние записи, новые первыми
	Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error)
}
