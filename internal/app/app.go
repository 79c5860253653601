package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/crawldock/internal/config"
	"github.com/kitbuilder587/crawldock/internal/metrics"
	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/repository"
	"github.com/kitbuilder587/crawldock/internal/repository/postgres"
	"github.com/kitbuilder587/crawldock/internal/service"
)

const (
	dbConnectTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// App - общие зависимости всех фронтендов
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Search   service.SearchService

	db *postgres.DB
}

type Options struct {
	// Endpoints переопределяет адреса апстримов (тесты)
	Endpoints service.EngineEndpoints
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
	}

	var history repository.SearchLogRepository
	if cfg.Database.URL != "" {
		repo, err := a.openHistory(ctx)
		if err != nil {
			return nil, err
		}
		history = repo
	} else {
		logger.Info("DATABASE_URL not set, search history disabled")
	}

	a.Search = service.NewSearchService(service.SearchServiceDeps{
		Config:  cfg.SearchSnapshot(),
		Limiter: ratelimit.New(cfg.Limiter()),
		Factory: service.NewEngineFactory(logger.Named("engine"), opts.Endpoints),
		Logger:  logger.Named("search"),
		Metrics: m,
		History: history,
	})

	return a, nil
}

func (a *App) openHistory(ctx context.Context) (repository.SearchLogRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()

	db, err := postgres.New(ctx, a.Config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a.db = db
	a.Logger.Info("search history enabled")
	return postgres.NewSearchLogRepo(db), nil
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.Logger.Sync()
}

// Run запускает фронтенд и, если задан METRICS_ADDR, сервер метрик.
// Завершение фронтенда или первая ошибка гасят обоих.
func (a *App) Run(ctx context.Context, frontend func(ctx context.Context) error) error {
	var ln net.Listener
	if a.Config.Metrics.Addr != "" {
		var err error
		ln, err = net.Listen("tcp", a.Config.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return frontend(ctx)
	})
	if ln != nil {
		g.Go(func() error {
			return a.serveMetrics(ctx, ln)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) serveMetrics(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.Registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	a.Logger.Info("metrics server started", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
