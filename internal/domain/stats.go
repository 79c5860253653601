package domain

import (
	"math"
	"time"
)

// EngineStats - счетчики движка за время жизни процесса
type EngineStats struct {
	Success int64
	Failure int64
	// скользящее среднее по всем попыткам, мс
	AvgTimeMs float64
}

// Record - avg = (avg*(n-1) + t) / n
func (s *EngineStats) Record(success bool, elapsed time.Duration) {
	if success {
		s.Success++
	} else {
		s.Failure++
	}
	n := float64(s.Success + s.Failure)
	ms := float64(elapsed) / float64(time.Millisecond)
	s.AvgTimeMs = (s.AvgTimeMs*(n-1) + ms) / n
}

func (s EngineStats) Total() int64 {
	return s.Success + s.Failure
}

func (s EngineStats) Snapshot() EngineStatsSnapshot {
	var rate float64
	if total := s.Total(); total > 0 {
		rate = float64(s.Success) / float64(total)
	}
	return EngineStatsSnapshot{
		Success:           s.Success,
		Failure:           s.Failure,
		SuccessRate:       rate,
		AvgProcessingTime: int64(math.Round(s.AvgTimeMs)),
	}
}

type EngineStatsSnapshot struct {
	Success           int64   `json:"success"`
	Failure           int64   `json:"failure"`
	SuccessRate       float64 `json:"successRate"`
	AvgProcessingTime int64   `json:"avgProcessingTime"`
}
