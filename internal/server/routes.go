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

	"github.com/gin-gonic/gin"
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/v1"

func (s *Server) setupRoutes() {
	s.engine.HandleMethodNotAllowed = true
	s.engine.NoRoute(func(c *gin.Context) {
		s.respondError(c, http.StatusNotFound, "NOT_FOUND", "no such route: "+c.Request.URL.Path)
	})
	s.engine.NoMethod(func(c *gin.Context) {
		s.respondError(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	v1 := s.engine.Group(APIPrefix)
	{
		v1.GET("/openapi.json", s.handleOpenAPI)
		v1.GET("/health", s.handleHealth)
		v1.GET("/knowledge-bases", s.handleListKnowledgeBases)
		v1.GET("/knowledge-bases/:name/suggestions", s.handleSuggestions)
		v1.POST("/knowledge-bases/:name/ask", s.handleAsk)
	}
}
