package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crawldock"

// Metrics - все методы безопасны на nil-получателе, метрики опциональны
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	SearchRequestsTotal   *prometheus.CounterVec
	SearchRequestDuration prometheus.Histogram

	EngineAttemptsTotal *prometheus.CounterVec
	EngineDuration      *prometheus.HistogramVec

	RateLimitHitsTotal prometheus.Counter
	RateLimitRemaining prometheus.Gauge

	ConfigUpdatesTotal *prometheus.CounterVec
	HistoryWritesTotal *prometheus.CounterVec
}

// New регистрирует метрики в reg; nil = глобальный регистр prometheus
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of front-end requests processed",
			},
			[]string{"type", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Front-end request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"type"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of searches currently being processed",
			},
		),

		SearchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Total number of orchestrated searches by outcome",
			},
			[]string{"status"},
		),
		SearchRequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_request_duration_seconds",
				Help:      "Orchestrated search duration in seconds, admission to return",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),

		EngineAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_attempts_total",
				Help:      "Search engine attempts by outcome",
			},
			[]string{"engine", "outcome"},
		),
		EngineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_duration_seconds",
				Help:      "Search engine call duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"engine"},
		),

		RateLimitHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of searches rejected by the rate limiter",
			},
		),
		RateLimitRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rate_limit_remaining",
				Help:      "Searches left in the current rate limit window",
			},
		),

		ConfigUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_updates_total",
				Help:      "Search configuration updates by status",
			},
			[]string{"status"},
		),
		HistoryWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_writes_total",
				Help:      "Search log writes by status",
			},
			[]string{"status"},
		),
	}

	return m
}

// Handler отдает метрики из g; nil = глобальный регистр
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(reqType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(reqType, status).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(duration.Seconds())
}

func (m *Metrics) RecordSearch(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(status).Inc()
	m.SearchRequestDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordEngineAttempt(engine, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EngineAttemptsTotal.WithLabelValues(engine, outcome).Inc()
	if duration > 0 {
		m.EngineDuration.WithLabelValues(engine).Observe(duration.Seconds())
	}
}

func (m *Metrics) RecordRateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.Inc()
}

func (m *Metrics) SetRateLimitRemaining(remaining int) {
	if m == nil {
		return
	}
	m.RateLimitRemaining.Set(float64(remaining))
}

func (m *Metrics) RecordConfigUpdate(status string) {
	if m == nil {
		return
	}
	m.ConfigUpdatesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordHistoryWrite(status string) {
	if m == nil {
		return
	}
	m.HistoryWritesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRequestsInFlight() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Inc()
}

func (m *Metrics) DecRequestsInFlight() {
	if m == nil {
		return
	}
	m.RequestsInFlight.Dec()
}
