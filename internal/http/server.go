// Package http provides the HTTP API for tutord.
package http

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ashgrovelabs/tutord/internal/evaluation"
	"github.com/ashgrovelabs/tutord/internal/logging"
)

// maxBatchItems bounds one batch request. Grading is model-call heavy;
// larger batches belong in multiple requests.
const maxBatchItems = 64

// requestIDPattern matches IDs safe to attach to log context. Client
// supplied X-Request-ID values outside this shape are served but not
// propagated.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Server provides HTTP endpoints for tutord.
type Server struct {
	echo    *echo.Echo
	boot    *evaluation.Bootstrap
	metrics *Metrics
	log     *logging.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the HTTP server around a bootstrap. The evaluation
// service initializes lazily on the first grading request, so a daemon with
// a broken grading config still starts, serves /health, and reports 503 on
// evaluation routes until a restart repairs it.
func NewServer(boot *evaluation.Bootstrap, log *logging.Logger, cfg *Config) (*Server, error) {
	if boot == nil {
		return nil, fmt.Errorf("bootstrap cannot be nil")
	}
	if log == nil {
		log = logging.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log = log.Named("http")

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s := &Server{
		echo:    e,
		boot:    boot,
		metrics: NewMetrics(),
		log:     log,
		config:  cfg,
	}

	e.Use(s.metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			log.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/evaluation", s.handleEvaluation)
	v1.POST("/evaluation/batch", s.handleBatch)
	v1.POST("/restart", s.handleRestart)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// BatchRequest is the request body for POST /api/v1/evaluation/batch.
type BatchRequest struct {
	Requests []evaluation.Request `json:"requests"`
}

// BatchResponse is the response body for POST /api/v1/evaluation/batch.
type BatchResponse struct {
	Results []evaluation.Result `json:"results"`
}

// RestartResponse is the response body for POST /api/v1/restart.
type RestartResponse struct {
	Status string `json:"status"`
}

// handleHealth reports liveness. Ready flips true once the evaluation
// service has initialized successfully.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Ready:  s.boot.Ready(),
	})
}

// handleEvaluation grades one submission.
func (s *Server) handleEvaluation(c echo.Context) error {
	var req evaluation.Request
	if err := c.Bind(&req); err != nil {
		s.log.Warn(c.Request().Context(), "invalid evaluation request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Response == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "response field is required")
	}

	ctx := s.requestContext(c)
	ctx = logging.WithEvaluationID(ctx, uuid.NewString())

	svc, err := s.boot.Service(ctx)
	if err != nil {
		s.log.Error(ctx, "evaluation service unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "evaluation service unavailable")
	}

	result, err := svc.Evaluate(ctx, req)
	if err != nil {
		// Only cancellation reaches here; grading failures are folded
		// into the result.
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// handleBatch grades independent submissions concurrently.
func (s *Server) handleBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		s.log.Warn(c.Request().Context(), "invalid batch request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Requests) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "requests field is required")
	}
	if len(req.Requests) > maxBatchItems {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("batch size %d exceeds limit %d", len(req.Requests), maxBatchItems))
	}

	ctx := s.requestContext(c)

	svc, err := s.boot.Service(ctx)
	if err != nil {
		s.log.Error(ctx, "evaluation service unavailable", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "evaluation service unavailable")
	}

	results, err := svc.EvaluateBatch(ctx, req.Requests)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BatchResponse{Results: results})
}

// handleRestart re-runs evaluation service initialization. This is the only
// path that retries a failed bootstrap.
func (s *Server) handleRestart(c echo.Context) error {
	ctx := s.requestContext(c)

	if _, err := s.boot.Restart(ctx); err != nil {
		s.log.Error(ctx, "restart failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable,
			fmt.Sprintf("initialization failed: %v", err))
	}

	s.log.Info(ctx, "evaluation service restarted")
	return c.JSON(http.StatusOK, RestartResponse{Status: "ready"})
}

// requestContext attaches the request ID to the context for log
// correlation.
func (s *Server) requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if id := c.Response().Header().Get(echo.HeaderXRequestID); requestIDPattern.MatchString(id) {
		ctx = logging.WithRequestID(ctx, id)
	}
	return ctx
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.log.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
