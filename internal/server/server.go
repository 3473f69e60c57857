// Package server is the FollowUp companion API: it turns meeting notes or a
// recording into a draft action plan and polishes reviewed plans.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/alkime/followup/internal/config"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transcriber converts an uploaded recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Planner drafts and polishes action plans.
type Planner interface {
	DraftActionPlan(ctx context.Context, notes string) (string, error)
	Polish(ctx context.Context, plan string) (string, error)
}

// Mailer delivers finalized plans.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Option configures a Server.
type Option func(*Server)

// WithMailer emails finalized plans to the address sent with them.
func WithMailer(m Mailer) Option {
	return func(s *Server) {
		s.mailer = m
	}
}

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	router      *gin.Engine
	metrics     *metrics
	transcriber Transcriber
	planner     Planner
	mailer      Mailer
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, transcriber Transcriber, planner Planner, opts ...Option) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Fly.io terminates TLS in front of production
	if cfg.IsProduction() {
		router.TrustedPlatform = gin.PlatformFlyIO
		logger.Debug("Configured trusted platform", "platform", "fly.io")
	}

	server := &Server{
		config:      cfg,
		logger:      logger,
		router:      router,
		metrics:     newMetrics(),
		transcriber: transcriber,
		planner:     planner,
	}

	for _, opt := range opts {
		opt(server)
	}

	setupSecurityMiddleware(router, cfg, logger)
	router.Use(server.observe())
	server.setupRoutes()

	return server
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run starts the HTTP server
func Run(s *Server) error {
	s.logger.Info("Server listening", "port", s.config.Port)

	return s.router.Run(":" + s.config.Port)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	{
		api.POST("/draft", s.handleDraft)
		api.POST("/finalize", s.handleFinalize)
	}

	// static pages only when no API route matched
	s.router.NoRoute(static.Serve("/", static.LocalFile(s.config.PublicDir, false)))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.config.AppName,
	})
}
