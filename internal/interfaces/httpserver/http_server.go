package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"scribe-server/internal/config"
	"scribe-server/internal/interfaces/httpserver/handlers"
	middleware "scribe-server/internal/interfaces/httpserver/middlewares"
)

type HTTPServer struct {
	engine   *gin.Engine
	handlers *handlers.Handler
	limiter  *middleware.RollingLimiter
	config   *config.Config
	server   *http.Server
}

func NewHTTPServer(h *handlers.Handler, limiter *middleware.RollingLimiter, cfg *config.Config, logger zerolog.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	s := &HTTPServer{
		engine:   gin.New(),
		handlers: h,
		limiter:  limiter,
		config:   cfg,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	s.engine.Use(middleware.LoggingMiddleware(logger))
	s.engine.Use(middleware.MetricsMiddleware())
	s.engine.Use(middleware.CORSMiddleware())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "version": config.Version})
	})

	s.bindRoutes()
	return s
}

func (s *HTTPServer) bindRoutes() {
	v1 := s.engine.Group("/v1")
	if s.config.RateLimitEnabled {
		v1.Use(middleware.RateLimitMiddleware(s.limiter))
	}

	v1.POST("/intake", s.handlers.Intake)
	v1.POST("/chat", s.handlers.Chat)
	v1.GET("/models", s.handlers.Models)
	v1.GET("/configs", s.handlers.Configs)
	v1.POST("/collections", s.handlers.EnsureCollection)
	v1.GET("/collections/:id/records", s.handlers.ListRecords)
}

// Engine exposes the router, used by tests.
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

func (s *HTTPServer) Run() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
