package service

import (
	"sync"
	"time"

	"github.com/kitbuilder587/crawldock/internal/domain"
)

type engineStats struct {
	mu    sync.Mutex
	stats map[string]*domain.EngineStats
}

func newEngineStats() *engineStats {
	return &engineStats{stats: make(map[string]*domain.EngineStats)}
}

func (e *engineStats) record(engine string, success bool, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.stats[engine]
	if !ok {
		st = &domain.EngineStats{}
		e.stats[engine] = st
	}
	st.Record(success, elapsed)
}

func (e *engineStats) snapshot() map[string]domain.EngineStatsSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]domain.EngineStatsSnapshot, len(e.stats))
	for name, st := range e.stats {
		out[name] = st.Snapshot()
	}
	return out
}
