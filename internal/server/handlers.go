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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/ask"
	"github.com/pgEdge/pgedge-ask-gateway/internal/chat"
	"github.com/pgEdge/pgedge-ask-gateway/internal/render"
	"github.com/pgEdge/pgedge-ask-gateway/internal/suggestions"
)

// StatusClientClosedRequest is reported when the caller went away before
// the answer completed.
const StatusClientClosedRequest = 499

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// KnowledgeBasesResponse is the response for the list knowledge bases
// endpoint.
type KnowledgeBasesResponse struct {
	KnowledgeBases []ask.Info `json:"knowledge_bases"`
}

// SuggestionsResponse is the response for the suggestions endpoint.
type SuggestionsResponse struct {
	Suggestions []suggestions.Suggestion `json:"suggestions"`
}

// AskRequest is the body of an ask request.
type AskRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	Stream     bool   `json:"stream,omitempty"`
	RenderHTML bool   `json:"render_html,omitempty"`
}

// AskResponse is the completed answer to an ask request.
type AskResponse struct {
	// Message is the answer as a chat message. For chart answers its text
	// is the answer field of the parsed payload.
	Message  chat.Message `json:"message"`
	Response string       `json:"response"`

	Charts     []answer.Chart `json:"charts,omitempty"`
	ChartError string         `json:"chart_error,omitempty"`

	OriginalResources json.RawMessage   `json:"original_resources,omitempty"`
	Citations         []answer.Citation `json:"citations,omitempty"`
	HTML              string            `json:"html,omitempty"`
}

// StreamEvent is a single Server-Sent Event of a streamed ask.
type StreamEvent struct {
	Type    string       `json:"type"` // "update", "result", "error" or "done"
	Content string       `json:"content,omitempty"`
	Result  *AskResponse `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
	Code    string       `json:"code,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles the GET /health endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	s.respondJSON(c, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleListKnowledgeBases handles the GET /knowledge-bases endpoint.
func (s *Server) handleListKnowledgeBases(c *gin.Context) {
	s.respondJSON(c, http.StatusOK, KnowledgeBasesResponse{
		KnowledgeBases: s.knowledgeBases.List(),
	})
}

// lookup finds a knowledge base by name, responding 404 when it does not
// exist.
func (s *Server) lookup(c *gin.Context) (ask.Info, bool) {
	name := c.Param("name")
	for _, info := range s.knowledgeBases.List() {
		if info.Name == name {
			return info, true
		}
	}
	s.respondError(c, http.StatusNotFound, "KNOWLEDGE_BASE_NOT_FOUND",
		"knowledge base not found: "+name)
	return ask.Info{}, false
}

// handleSuggestions handles the GET /knowledge-bases/:name/suggestions
// endpoint.
func (s *Server) handleSuggestions(c *gin.Context) {
	info, ok := s.lookup(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
				"limit must be a positive integer")
			return
		}
		limit = n
	}

	// With a partial question, rank the whole list and keep the best.
	question := strings.TrimSpace(c.Query("q"))
	fetch := limit
	if question != "" {
		fetch = suggestions.MaxLimit
	}

	items := []suggestions.Suggestion{}
	if s.suggestions != nil {
		found, err := s.suggestions.List(c.Request.Context(), info.Name, fetch)
		if err != nil {
			s.logger.Error("failed to list suggestions",
				"knowledge_base", info.Name,
				"error", err)
			s.respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR",
				"failed to list suggestions")
			return
		}
		if question != "" {
			found = suggestions.Match(found, question, limit)
		}
		items = append(items, found...)
	}

	s.respondJSON(c, http.StatusOK, SuggestionsResponse{Suggestions: items})
}

// handleAsk handles the POST /knowledge-bases/:name/ask endpoint.
func (s *Server) handleAsk(c *gin.Context) {
	info, ok := s.lookup(c)
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST",
			"invalid request body: "+err.Error())
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "query is required")
		return
	}
	if req.TopK < 0 {
		s.respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "top_k must be non-negative")
		return
	}

	var opts []ask.AskOption
	if req.TopK > 0 {
		opts = append(opts, ask.WithTopK(req.TopK))
	}

	if req.Stream {
		s.handleStreamingAsk(c, info, req, opts)
		return
	}

	result, err := s.knowledgeBases.Ask(c.Request.Context(), info.Name, req.Query, nil, opts...)
	if err != nil {
		s.logAskError(info.Name, err)
		status, code := askErrorStatus(err)
		s.respondError(c, status, code, err.Error())
		return
	}

	s.respondJSON(c, http.StatusOK, s.buildAskResponse(info, result, req.RenderHTML))
}

// handleStreamingAsk answers using Server-Sent Events. Each update carries
// the full accumulated text. The request context cancels the ask when the
// client disconnects.
func (s *Server) handleStreamingAsk(c *gin.Context, info ask.Info, req AskRequest,
	opts []ask.AskOption) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	result, err := s.knowledgeBases.Ask(c.Request.Context(), info.Name, req.Query,
		func(text string) {
			s.sendSSE(c, StreamEvent{Type: "update", Content: text})
		}, opts...)

	if err != nil {
		if errors.Is(err, ask.ErrCancelled) && c.Request.Context().Err() != nil {
			s.logger.Debug("client disconnected during streaming",
				"knowledge_base", info.Name)
			return
		}
		s.logAskError(info.Name, err)
		_, code := askErrorStatus(err)
		s.sendSSE(c, StreamEvent{Type: "error", Error: err.Error(), Code: code})
		s.sendSSE(c, StreamEvent{Type: "done"})
		return
	}

	resp := s.buildAskResponse(info, result, req.RenderHTML)
	s.sendSSE(c, StreamEvent{Type: "result", Result: &resp})
	s.sendSSE(c, StreamEvent{Type: "done"})
}

// buildAskResponse turns a completed result into the response body. Answers
// from schema-mode knowledge bases are parsed as chart answers; a payload
// that cannot be parsed is reported in ChartError and shown as raw text.
func (s *Server) buildAskResponse(info ask.Info, result *answer.StreamingAskResult,
	renderHTML bool) AskResponse {
	text := result.Response
	resp := AskResponse{
		Response:          result.Response,
		OriginalResources: result.OriginalResources,
		Citations:         result.Citations.Ordered(),
	}

	if info.Mode == string(ask.ModeSchema) {
		parsed, err := answer.ParseChartAnswer(result.Response)
		if err != nil {
			resp.ChartError = err.Error()
		} else {
			text = parsed.Answer
			resp.Charts = parsed.Charts
			if err := parsed.Validate(); err != nil {
				s.logger.Warn("chart answer violates contract",
					"knowledge_base", info.Name,
					"error", err)
				resp.ChartError = err.Error()
			}
		}
	}

	resp.Message = chat.NewAssistantMessage(info.Name, text)

	if renderHTML {
		html, err := render.Markdown(text)
		if err != nil {
			s.logger.Warn("failed to render answer",
				"knowledge_base", info.Name,
				"error", err)
		} else {
			resp.HTML = html
		}
	}

	return resp
}

// askErrorStatus maps an ask error to an HTTP status and error code.
func askErrorStatus(err error) (int, string) {
	var remote *ask.RemoteCallError
	switch {
	case errors.Is(err, ask.ErrCancelled):
		return StatusClientClosedRequest, "CANCELLED"
	case errors.As(err, &remote):
		return http.StatusBadGateway, "REMOTE_ERROR"
	case errors.Is(err, ask.ErrKnowledgeBaseNotFound):
		return http.StatusNotFound, "KNOWLEDGE_BASE_NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) logAskError(name string, err error) {
	if errors.Is(err, ask.ErrCancelled) {
		s.logger.Info("ask cancelled", "knowledge_base", name)
		return
	}
	s.logger.Error("ask failed",
		"knowledge_base", name,
		"error", err)
}

// sendSSE sends a Server-Sent Event.
func (s *Server) sendSSE(c *gin.Context, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal SSE event", "error", err)
		return
	}

	// SSE format: data: {json}\n\n
	if _, err := c.Writer.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		s.logger.Error("failed to write SSE event", "error", err)
		return
	}
	c.Writer.Flush()
}

// respondJSON sends a JSON response with RFC 8631 Link header for API discovery.
func (s *Server) respondJSON(c *gin.Context, status int, data any) {
	c.Header("Link", `</v1/openapi.json>; rel="service-desc"`)
	c.JSON(status, data)
}

// respondError sends an error response and stops the handler chain.
func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	s.respondJSON(c, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
	c.Abort()
}
