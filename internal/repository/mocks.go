package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitbuilder587/crawldock/internal/domain"
)

type MockSearchLogRepository struct {
	mu      sync.RWMutex
	entries []domain.SearchLogEntry

	// RecordErr - если задан, Record всегда падает с ним
	RecordErr error
}

func NewMockSearchLogRepository() *MockSearchLogRepository {
	return &MockSearchLogRepository{}
}

func (m *MockSearchLogRepository) Record(ctx context.Context, entry *domain.SearchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockSearchLogRepository) Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// обратный порядок вставки, чтобы при равном времени новые шли первыми
	out := make([]domain.SearchLogEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSearchLogRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
