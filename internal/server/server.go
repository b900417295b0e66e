//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package server provides the HTTP API in front of the knowledge bases.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/ask"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/suggestions"
)

// KnowledgeBaseManager defines the interface for knowledge base access.
type KnowledgeBaseManager interface {
	List() []ask.Info
	Ask(
		ctx context.Context,
		name string,
		query string,
		onUpdate ask.UpdateFunc,
		opts ...ask.AskOption,
	) (*answer.StreamingAskResult, error)
	Close() error
}

// Server is the HTTP server for the ask API.
type Server struct {
	config         *config.Config
	knowledgeBases KnowledgeBaseManager
	suggestions    suggestions.Store
	logger         *slog.Logger
	server         *http.Server
	engine         *gin.Engine
}

// New creates a new HTTP server. store may be nil, in which case every
// knowledge base reports no suggestions.
func New(
	cfg *config.Config,
	kbm KnowledgeBaseManager,
	store suggestions.Store,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:         cfg,
		knowledgeBases: kbm,
		suggestions:    store,
		logger:         logger,
		engine:         gin.New(),
	}

	s.applyMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.ListenAddress, s.config.Server.Port)

	// No write timeout: streamed answers stay open until the knowledge base
	// finishes.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting server",
		"address", addr,
		"tls", s.config.Server.TLS.Enabled)

	if s.config.Server.TLS.Enabled {
		return s.serveTLS()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.server.Serve(listener)
}

// serveTLS starts the server with TLS.
func (s *Server) serveTLS() error {
	s.server.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	return s.server.ListenAndServeTLS(
		s.config.Server.TLS.CertFile,
		s.config.Server.TLS.KeyFile,
	)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}

	return nil
}

// Addr returns the server's address. Returns empty string if not started.
func (s *Server) Addr() string {
	if s.server != nil {
		return s.server.Addr
	}
	return ""
}
