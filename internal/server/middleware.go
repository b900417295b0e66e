//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package server

import (
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on both requests and responses.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// applyMiddleware installs the middleware chain. Recovery runs outermost.
func (s *Server) applyMiddleware() {
	s.engine.Use(s.recoveryMiddleware(), s.requestIDMiddleware(), s.loggingMiddleware())
	if s.config.Server.CORS.Enabled {
		if mw := s.corsMiddleware(); mw != nil {
			s.engine.Use(mw)
		}
	}
}

// requestIDMiddleware reuses the caller's request id or assigns a new one.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware logs request information.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"remote", c.ClientIP(),
			"request_id", c.GetString(requestIDKey))
	}
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()))

				if !c.Writer.Written() {
					s.respondError(c, http.StatusInternalServerError,
						"INTERNAL_ERROR", "internal server error")
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}

// corsMiddleware builds the CORS handler from configuration. It returns nil
// when no origin is allowed.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := s.config.Server.CORS.AllowedOrigins
	if len(origins) == 0 {
		s.logger.Warn("cors enabled without allowed origins; cross-origin requests will be refused")
		return nil
	}

	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{"Link", RequestIDHeader},
		MaxAge:        24 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}

	return cors.New(cfg)
}
