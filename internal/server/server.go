// Package server owns the HTTP server lifecycle: router construction, common
// middleware, status endpoints and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hashpoint/go-wallet-gateway/pkg/config"
	"github.com/hashpoint/go-wallet-gateway/pkg/middleware"
)

// RouteProvider lets components contribute routes to the shared router.
type RouteProvider interface {
	RegisterRoutes(router *gin.Engine)
}

// Server manages the gateway HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	providers []RouteProvider

	httpServer *http.Server
	router     *gin.Engine
}

// New creates a new server
func New(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.Named("server"),
	}
}

// AddProvider registers a RouteProvider. Call before Start().
func (s *Server) AddProvider(p RouteProvider) {
	s.providers = append(s.providers, p)
}

// Router returns the router, building it on first use. Exposed for tests.
func (s *Server) Router() *gin.Engine {
	if s.router == nil {
		s.router = s.buildRouter()
		for _, p := range s.providers {
			p.RegisterRoutes(s.router)
		}
		s.addStatusEndpoints(s.router)
	}
	return s.router
}

// Start begins serving HTTP. It returns immediately; errors after startup
// are logged.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server listening", zap.String("address", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully shuts the server down
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// buildRouter creates the router with common middleware
func (s *Server) buildRouter() *gin.Engine {
	if s.cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(s.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.Server.CORS.AllowedOrigins,
		AllowMethods:     s.cfg.Server.CORS.AllowedMethods,
		AllowHeaders:     s.cfg.Server.CORS.AllowedHeaders,
		ExposeHeaders:    s.cfg.Server.CORS.ExposedHeaders,
		AllowCredentials: s.cfg.Server.CORS.AllowCredentials,
		MaxAge:           time.Duration(s.cfg.Server.CORS.MaxAge) * time.Second,
	}))
	return router
}

// addStatusEndpoints adds /health and /status routes
func (s *Server) addStatusEndpoints(router *gin.Engine) {
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "wallet-gateway",
			"environment": s.cfg.Environment,
		})
	}
	router.GET("/health", handler)
	router.GET("/status", handler)
}
