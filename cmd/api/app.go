package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/courserank/internal/api"
	"github.com/onnwee/courserank/internal/catalog"
	"github.com/onnwee/courserank/internal/config"
	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/health"
	"github.com/onnwee/courserank/internal/middleware"
	"github.com/onnwee/courserank/internal/promotion"
	"github.com/onnwee/courserank/internal/ranking"
	"github.com/onnwee/courserank/internal/seed"
	"github.com/onnwee/courserank/internal/settings"
	"github.com/onnwee/courserank/internal/tracing"
)

const serviceName = "courserank"

// app holds the wired HTTP handler and the resources to release on shutdown.
type app struct {
	handler http.Handler
	closers []func(context.Context) error
}

// newApp wires stores, services and the router from cfg. Without
// DATABASE_URL the catalog is served from memory, preloaded with the seed
// catalog. Without REDIS_URL settings are uncached and rate limits are
// tracked per process.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	catalogMetrics := catalog.NewMetrics()
	promotionMetrics := promotion.NewMetrics()
	for _, r := range []interface {
		Register(prometheus.Registerer) error
	}{httpMetrics, catalogMetrics, promotionMetrics} {
		if err := r.Register(registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	defaults, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("calibration file not applied, using defaults", "error", err)
	}

	checkers := map[string]api.HealthChecker{}

	var (
		courses      course.Store
		settingsRepo settings.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		courses = course.NewPostgresRepository(db, cfg.PromotionMaxRetries, logger)
		settingsRepo = settings.NewPostgresRepository(db)
		checkers["database"] = health.NewDBChecker(db)
		logger.Info("using postgres storage")
	} else {
		courses = course.NewInMemoryRepository(seed.Catalog()...)
		settingsRepo = settings.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, serving the seed catalog from memory")
	}

	var rateStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		checkers["redis"] = health.NewRedisChecker(client)
		if cfg.SettingsCacheTTLSeconds > 0 {
			settingsRepo = settings.NewCachedRepository(settingsRepo, client, cfg.SettingsCacheTTL(), logger)
		}
		if cfg.WriteRateLimitPerMinute > 0 {
			rateStore = middleware.NewRedisRateLimitStore(client, httpMetrics, logger)
		}
	} else if cfg.WriteRateLimitPerMinute > 0 {
		mem := middleware.NewInMemoryRateLimitStore()
		stop := startCleanup(mem, 5*time.Minute)
		a.closers = append(a.closers, func(context.Context) error { stop(); return nil })
		rateStore = mem
	}

	provider := settings.NewProvider(settingsRepo, defaults, logger)
	catalogService := catalog.NewService(courses, provider, catalogMetrics, logger)
	promotionService := promotion.NewService(courses, provider, promotionMetrics, logger)

	a.handler = api.NewRouter(api.RouterConfig{
		Courses:        api.NewCourseHandlers(catalogService, promotionService),
		Settings:       api.NewSettingsHandlers(provider),
		Health:         api.NewHealthHandlers(api.HealthHandlersConfig{Checkers: checkers}),
		Logger:         logger,
		Metrics:        httpMetrics,
		Gatherer:       registry,
		RateLimitStore: rateStore,
		WriteLimit: middleware.RateLimitConfig{
			RequestsPerWindow: cfg.WriteRateLimitPerMinute,
			WindowDuration:    time.Minute,
		},
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		TracingEnabled:    tp.IsEnabled(),
		ServiceName:       serviceName,
	})
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// startCleanup evicts expired in-memory rate limit buckets until stop is called.
func startCleanup(store *middleware.InMemoryRateLimitStore, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.Cleanup()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// run serves HTTP until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		_ = a.close(context.Background())
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := a.close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
