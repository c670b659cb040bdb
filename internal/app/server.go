// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mabel_auth_backend/internal/auth"
	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/jobs"
	"mabel_auth_backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	authorizer  *auth.Authorizer
	authHandler *auth.Handler

	// Jobs
	verificationSweepJob *jobs.VerificationSweepJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authorizer *auth.Authorizer,
	authHandler *auth.Handler,
	transport *auth.SessionTransport,
	verificationSweepJob *jobs.VerificationSweepJob,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	} else {
		// Browsers refuse credentialed requests to a wildcard origin.
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader, common.SessionTokenHeader}
	router.Use(cors.New(corsConfig))

	requireSession := middleware.RequireSession(authorizer, transport, logger.Named("SessionMiddleware"))

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Mabel auth backend is healthy!"})
	})

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, requireSession)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	timeout := cfg.ServerTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:           httpServer,
		router:               router,
		cfg:                  cfg,
		logger:               logger,
		authorizer:           authorizer,
		authHandler:          authHandler,
		verificationSweepJob: verificationSweepJob,
	}, nil
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start() error {
	if s.verificationSweepJob != nil {
		if err := s.verificationSweepJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start verification sweep job", zap.Error(err))
		}
	} else {
		s.logger.Info("Verification sweep job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

// Shutdown stops accepting requests, then waits for the sweep job and any
// pending sign-in timestamp writes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	err := s.httpServer.Shutdown(ctx)
	if s.verificationSweepJob != nil {
		s.verificationSweepJob.Stop()
	}

	drained := make(chan struct{})
	go func() {
		s.authorizer.Drain()
		close(drained)
	}()
	select {
	case <-drained:
		s.logger.Info("Pending session writes drained.")
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for pending session writes.")
	}
	return err
}
