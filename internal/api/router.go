package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/courserank/internal/middleware"
)

// RouterConfig wires handlers and cross-cutting middleware into the router.
type RouterConfig struct {
	Courses  *CourseHandlers
	Settings *SettingsHandlers
	Health   *HealthHandlers

	Logger *slog.Logger

	// Metrics and Gatherer enable HTTP metrics and GET /metrics when set.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer

	// RateLimitStore limits the write endpoints when set.
	RateLimitStore middleware.RateLimitStore
	WriteLimit     middleware.RateLimitConfig

	// TrustProxyHeaders keys rate limits on X-Forwarded-For / X-Real-IP.
	// Set it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	// TracingEnabled adds the OpenTelemetry HTTP middleware.
	TracingEnabled bool
	ServiceName    string
}

// NewRouter builds the HTTP handler:
//
//	GET  /courses/ranked
//	GET  /courses/{id}
//	POST /courses/{id}/promotion
//	GET  /settings
//	PUT  /settings
//	GET  /health, /ready, /metrics
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := func(endpoint string, h http.HandlerFunc) http.Handler {
		if cfg.RateLimitStore == nil {
			return h
		}
		return middleware.RateLimiter(cfg.RateLimitStore, cfg.WriteLimit, middleware.IPKeyFunc(cfg.TrustProxyHeaders), cfg.Metrics, endpoint)(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /courses/ranked", cfg.Courses.Ranked)
	mux.HandleFunc("GET /courses/{id}", cfg.Courses.Get)
	mux.Handle("POST /courses/{id}/promotion", limit("promotion", cfg.Courses.Promote))
	mux.HandleFunc("GET /settings", cfg.Settings.Get)
	mux.Handle("PUT /settings", limit("settings", cfg.Settings.Put))
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "courserank"
		}
		handler = middleware.Tracing(name)(handler)
	}
	handler = middleware.RequestID(handler)
	return middleware.Recover(logger)(handler)
}
