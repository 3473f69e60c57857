package server

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/alkime/followup/internal/config"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// requestIDHeader matches the header the terminal client sends.
const requestIDHeader = "X-Request-ID"

// setupSecurityMiddleware configures and applies security middleware to the router
func setupSecurityMiddleware(router *gin.Engine, cfg *config.Config, logger *slog.Logger) {
	// HSTS in production only
	stsSeconds := int64(0)
	if cfg.IsProduction() {
		stsSeconds = int64(cfg.HSTSMaxAge)
	}

	//nolint:exhaustruct // remaining secure options stay disabled
	secureMiddleware := secure.New(secure.Config{
		STSSeconds:            stsSeconds,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: config.BuildCSP(cfg.CSPMode),
	})
	router.Use(secureMiddleware)

	logger.Debug("Configured security middleware",
		"hsts_enabled", cfg.IsProduction(),
		"csp_mode", cfg.CSPMode,
	)
}

// observe records request metrics and echoes the client's request id so
// client and server logs can be joined.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID != "" {
			c.Header(requestIDHeader, requestID)
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "static"
		}

		status := strconv.Itoa(c.Writer.Status())
		s.metrics.requests.WithLabelValues(c.Request.Method, route, status).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		if route != "static" && route != "/metrics" {
			s.logger.Info("request handled",
				"route", route,
				"status", c.Writer.Status(),
				"request_id", requestID,
				"duration", time.Since(start),
			)
		}
	}
}
