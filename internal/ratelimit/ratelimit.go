package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 500
	DefaultWindow      = 24 * time.Hour
)

// Limiter - глобальный sliding window на все поиски процесса.
// Старые записи чистятся лениво, при каждом чтении/записи.
type Limiter struct {
	mu       sync.Mutex
	requests []time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

type Config struct {
	MaxRequests int
	Window      time.Duration
	// Now подменяется в тестах
	Now func() time.Time
}

type Status struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetTime"`
	Total     int       `json:"total"`
}

func New(cfg Config) *Limiter {
	limit := cfg.MaxRequests
	if limit <= 0 {
		limit = DefaultMaxRequests
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Limiter{
		requests: make([]time.Time, 0, min(limit, 1024)),
		limit:    limit,
		window:   window,
		now:      now,
	}
}

// CanAdmit - есть ли свободный слот прямо сейчас. Ничего не записывает.
func (l *Limiter) CanAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	return len(l.requests) < l.limit
}

// RecordAdmission - учесть запрос. Если окно уже заполнено, вызов
// молча ничего не записывает: окно не растет больше лимита. Между
// CanAdmit и RecordAdmission слот может занять другой вызов, поэтому
// для атомарной проверки с записью есть Allow.
func (l *Limiter) RecordAdmission() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.requests) >= l.limit {
		return
	}
	l.requests = append(l.requests, now)
}

// Allow - проверка и запись под одним локом, чтобы параллельные
// вызовы не проскочили лимит вдвоем.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.requests) >= l.limit {
		return false
	}
	l.requests = append(l.requests, now)
	return true
}

// Status - ResetAt это момент, когда освободится ближайший слот
// (самая старая запись выйдет из окна), а не когда очистится все окно.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)

	reset := now.Add(l.window)
	if len(l.requests) > 0 {
		oldest := l.requests[0]
		for _, t := range l.requests[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		reset = oldest.Add(l.window)
	}

	return Status{
		Remaining: max(0, l.limit-len(l.requests)),
		ResetAt:   reset,
		Total:     l.limit,
	}
}

func (l *Limiter) Limit() int {
	return l.limit
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// purge вызывается под l.mu
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)

	fresh := l.requests[:0] // reuse underlying array
	for _, t := range l.requests {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	l.requests = fresh
}
