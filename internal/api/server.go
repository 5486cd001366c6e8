// Package api exposes the forecast engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	forecaster "github.com/aouyang1/go-ndvi-forecaster"
	"github.com/aouyang1/go-ndvi-forecaster/backend"
	"github.com/aouyang1/go-ndvi-forecaster/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// ServerConfig holds server configuration.
type ServerConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimit      float64
	RateBurst      int
	DefaultBackend backend.Kind
	Version        string
	Clock          clockwork.Clock
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer
}

// Server wraps the echo HTTP server serving forecasts.
type Server struct {
	echo    *echo.Echo
	config  *ServerConfig
	engine  *forecaster.Engine
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	limiter *rate.Limiter

	shuttingDown atomic.Bool
}

// NewServer creates the HTTP server with the forecast, chart, listing, health and metrics
// routes registered.
func NewServer(engine *forecaster.Engine, logger *slog.Logger, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		DefaultBackend: backend.KindStatistical,
		Version:        "dev",
		Clock:          clockwork.NewRealClock(),
		Gatherer:       prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		echo:    e,
		config:  cfg,
		engine:  engine,
		logger:  logger,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(s.requestLogging())
	e.Use(middleware.Recover())

	e.GET("/", s.handleIndex)
	e.GET("/regions", s.handleRegions)
	e.POST("/predict", s.handlePredict, s.rateLimit())
	e.GET("/chart", s.handleChart, s.rateLimit())
	e.GET("/healthz", s.handleHealth)
	e.GET("/readyz", s.handleReady)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	for _, status := range engine.Registry().Status() {
		loaded := 0.0
		if status.State == forecaster.ModelLoaded {
			loaded = 1.0
		}
		s.metrics.LearnedModels.WithLabelValues(status.Region.String()).Set(loaded)
	}

	return s
}

// Start listens on addr and blocks. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server starting", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown marks the server as not ready and drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("unable to shutdown http server, %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// ServeHTTP delegates to the echo router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// CheckReadiness reports an error while the server cannot serve forecasts
func (s *Server) CheckReadiness(ctx context.Context) error {
	if s.engine == nil {
		return forecaster.ErrUninitializedEngine
	}
	if s.shuttingDown.Load() {
		return errors.New("shutting down")
	}
	return ctx.Err()
}

// WithTimeouts sets read/write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithRateLimit limits forecast requests to limit per second with the given burst. A limit of
// 0 disables rate limiting.
func WithRateLimit(limit float64, burst int) ServerOption {
	return func(c *ServerConfig) {
		c.RateLimit = limit
		c.RateBurst = burst
	}
}

// WithDefaultBackend sets the backend used when a request does not select one.
func WithDefaultBackend(kind backend.Kind) ServerOption {
	return func(c *ServerConfig) {
		c.DefaultBackend = kind
	}
}

// WithVersion sets the version reported by the index route.
func WithVersion(version string) ServerOption {
	return func(c *ServerConfig) {
		c.Version = version
	}
}

// WithClock sets the clock used for latency measurement and rate limiting.
func WithClock(clock clockwork.Clock) ServerOption {
	return func(c *ServerConfig) {
		c.Clock = clock
	}
}

// WithMetrics sets the metrics recorded by the server and the gatherer exposed on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) ServerOption {
	return func(c *ServerConfig) {
		c.Metrics = m
		if g != nil {
			c.Gatherer = g
		}
	}
}
