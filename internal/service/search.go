package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/domain"
	"github.com/kitbuilder587/crawldock/internal/metrics"
	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/repository"
	"github.com/kitbuilder587/crawldock/internal/search"
)

const historyWriteTimeout = 3 * time.Second

type SearchService interface {
	// Search - движки по очереди, первый с непустым ответом выигрывает.
	// Наружу выходят только *domain.RateLimitError и *domain.ExhaustedError
	// (плюс ErrEmptyQuery и отмена контекста).
	Search(ctx context.Context, query string, opts search.Options) (*search.Response, error)
	RateLimitStatus() ratelimit.Status
	PerformanceStatus() PerformanceStatus
	UpdateConfig(update search.ConfigUpdate) error
	Config() search.Config
	SearchHistory(ctx context.Context, limit int) ([]domain.SearchLogEntry, error)
}

type PerformanceStatus struct {
	RateLimit   ratelimit.Status                      `json:"rateLimit"`
	EngineStats map[string]domain.EngineStatsSnapshot `json:"engineStats"`
}

// EngineFactory строит движки в порядке приоритета из снапшота конфига
type EngineFactory func(cfg search.Config) []search.Engine

type SearchServiceDeps struct {
	Config  search.Config
	Limiter *ratelimit.Limiter
	Factory EngineFactory
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// History - журнал поисков, может быть nil
	History repository.SearchLogRepository
	Now     func() time.Time
}

// snapshot меняется целиком, поиски в полете дорабатывают на старом
type snapshot struct {
	config  search.Config
	engines []search.Engine
}

type searchService struct {
	limiter *ratelimit.Limiter
	factory EngineFactory
	logger  *zap.Logger
	metrics *metrics.Metrics
	history repository.SearchLogRepository
	now     func() time.Time

	current  atomic.Pointer[snapshot]
	updateMu sync.Mutex
	stats    *engineStats
}

func NewSearchService(deps SearchServiceDeps) SearchService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(ratelimit.Config{})
	}
	if deps.Factory == nil {
		deps.Factory = NewEngineFactory(deps.Logger, EngineEndpoints{})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &searchService{
		limiter: deps.Limiter,
		factory: deps.Factory,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		history: deps.History,
		now:     deps.Now,
		stats:   newEngineStats(),
	}

	cfg := deps.Config.WithDefaults()
	s.current.Store(&snapshot{config: cfg, engines: s.factory(cfg)})
	s.metrics.SetRateLimitRemaining(s.limiter.Status().Remaining)

	s.logger.Info("search service initialized",
		zap.Bool("google_configured", cfg.GoogleConfigured()),
		zap.Int("max_results", cfg.MaxResults),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("rate_limit", s.limiter.Limit()),
		zap.Duration("rate_window", s.limiter.Window()),
		zap.Bool("history_enabled", s.history != nil),
	)
	return s
}

func (s *searchService) Search(ctx context.Context, query string, opts search.Options) (*search.Response, error) {
	s.metrics.IncRequestsInFlight()
	defer s.metrics.DecRequestsInFlight()

	query, err := domain.NormalizeQuery(query)
	if err != nil {
		s.metrics.RecordSearch("invalid", 0)
		return nil, err
	}

	log := s.logger.With(
		zap.String("search_id", newSearchID()),
		zap.String("query", query),
	)

	if !s.limiter.Allow() {
		st := s.limiter.Status()
		log.Warn("rate limit exceeded",
			zap.Int("remaining", st.Remaining),
			zap.Time("reset_time", st.ResetAt),
		)
		s.metrics.RecordRateLimitHit()
		s.metrics.RecordSearch(string(domain.SearchStatusRateLimited), 0)
		rlErr := &domain.RateLimitError{ResetAt: st.ResetAt, Remaining: st.Remaining, Total: st.Total}
		s.recordHistory(ctx, log, &domain.SearchLogEntry{
			Query:  query,
			Status: domain.SearchStatusRateLimited,
			Error:  rlErr.Error(),
		})
		return nil, rlErr
	}
	admittedAt := s.now()
	s.metrics.SetRateLimitRemaining(s.limiter.Status().Remaining)

	snap := s.current.Load()
	if opts.MaxResults <= 0 {
		opts.MaxResults = snap.config.MaxResults
	}
	req := search.Request{Query: query, Options: opts}

	log.Info("starting search with fallback strategy",
		zap.Int("max_results", opts.MaxResults),
		zap.Int("engines", len(snap.engines)),
	)

	outcomes := make([]domain.EngineOutcome, 0, len(snap.engines))
	for _, engine := range snap.engines {
		name := engine.Name()

		if c, ok := engine.(search.Configurable); ok && !c.IsConfigured() {
			log.Debug("skipping engine, not configured", zap.String("engine", name))
			s.metrics.RecordEngineAttempt(name, string(domain.OutcomeSkipped), 0)
			outcomes = append(outcomes, domain.EngineOutcome{Engine: name, Status: domain.OutcomeSkipped})
			continue
		}

		if err := ctx.Err(); err != nil {
			log.Warn("search canceled", zap.Error(err))
			s.metrics.RecordSearch("canceled", s.now().Sub(admittedAt))
			return nil, fmt.Errorf("search canceled: %w", err)
		}

		log.Info("attempting search", zap.String("engine", name))
		started := s.now()
		resp, err := engine.Search(ctx, req)
		elapsed := s.now().Sub(started)

		switch {
		case err != nil:
			s.stats.record(name, false, elapsed)
			s.metrics.RecordEngineAttempt(name, string(domain.OutcomeError), elapsed)
			log.Warn("search failed",
				zap.String("engine", name),
				zap.String("kind", string(search.KindOf(err))),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
			outcomes = append(outcomes, domain.EngineOutcome{Engine: name, Status: domain.OutcomeError, Err: err, Elapsed: elapsed})

		case resp == nil || len(resp.Results) == 0:
			s.stats.record(name, false, elapsed)
			s.metrics.RecordEngineAttempt(name, string(domain.OutcomeEmpty), elapsed)
			log.Warn("no results", zap.String("engine", name), zap.Duration("elapsed", elapsed))
			outcomes = append(outcomes, domain.EngineOutcome{Engine: name, Status: domain.OutcomeEmpty, Elapsed: elapsed})

		default:
			s.stats.record(name, true, elapsed)
			s.metrics.RecordEngineAttempt(name, "success", elapsed)
			total := s.now().Sub(admittedAt)
			resp.ProcessingTimeMs = total.Milliseconds()

			log.Info("search successful",
				zap.String("engine", name),
				zap.Int("results", len(resp.Results)),
				zap.Duration("engine_elapsed", elapsed),
				zap.Int64("processing_ms", resp.ProcessingTimeMs),
			)
			s.metrics.RecordSearch(string(domain.SearchStatusSuccess), total)
			s.recordHistory(ctx, log, &domain.SearchLogEntry{
				Query:            query,
				Engine:           resp.SearchEngine,
				Status:           domain.SearchStatusSuccess,
				ResultCount:      len(resp.Results),
				ProcessingTimeMs: resp.ProcessingTimeMs,
			})
			return resp, nil
		}
	}

	total := s.now().Sub(admittedAt)
	exhausted := &domain.ExhaustedError{Query: query, Outcomes: outcomes}
	log.Error("all search engines failed",
		zap.Duration("total_elapsed", total),
		zap.Error(exhausted),
	)
	s.metrics.RecordSearch(string(domain.SearchStatusExhausted), total)
	s.recordHistory(ctx, log, &domain.SearchLogEntry{
		Query:            query,
		Status:           domain.SearchStatusExhausted,
		Error:            exhausted.Error(),
		ProcessingTimeMs: total.Milliseconds(),
	})
	return nil, exhausted
}

func (s *searchService) RateLimitStatus() ratelimit.Status {
	return s.limiter.Status()
}

func (s *searchService) PerformanceStatus() PerformanceStatus {
	return PerformanceStatus{
		RateLimit:   s.limiter.Status(),
		EngineStats: s.stats.snapshot(),
	}
}

// UpdateConfig пересобирает движки; лимитер и статистика не трогаются
func (s *searchService) UpdateConfig(update search.ConfigUpdate) error {
	if err := update.Validate(); err != nil {
		s.metrics.RecordConfigUpdate("invalid")
		return err
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	cfg := s.current.Load().config.Merge(update)
	s.current.Store(&snapshot{config: cfg, engines: s.factory(cfg)})
	s.metrics.RecordConfigUpdate("ok")

	s.logger.Info("search configuration updated",
		zap.Bool("google_configured", cfg.GoogleConfigured()),
		zap.Int("max_results", cfg.MaxResults),
		zap.Duration("timeout", cfg.Timeout),
	)
	return nil
}

func (s *searchService) Config() search.Config {
	return s.current.Load().config
}

func (s *searchService) SearchHistory(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	if s.history == nil {
		return nil, domain.ErrHistoryDisabled
	}
	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	return entries, nil
}

// recordHistory - журнал не должен ломать поиск, ошибки только логируем
func (s *searchService) recordHistory(ctx context.Context, log *zap.Logger, entry *domain.SearchLogEntry) {
	if s.history == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()

	if err := s.history.Record(ctx, entry); err != nil {
		log.Warn("failed to record search history", zap.Error(err))
		s.metrics.RecordHistoryWrite("error")
		return
	}
	s.metrics.RecordHistoryWrite("ok")
}

func newSearchID() string {
	return uuid.NewString()[:8]
}
