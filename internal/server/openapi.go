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

// OpenAPISpec represents the OpenAPI v3 document.
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Servers    []OpenAPIServer        `json:"servers"`
	Paths      map[string]OpenAPIPath `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
}

// OpenAPIInfo contains API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// OpenAPIServer describes a server.
type OpenAPIServer struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// OpenAPIPath contains operations for a path.
type OpenAPIPath struct {
	Get  *OpenAPIOperation `json:"get,omitempty"`
	Post *OpenAPIOperation `json:"post,omitempty"`
}

// OpenAPIOperation describes an API operation.
type OpenAPIOperation struct {
	Summary     string                     `json:"summary"`
	Description string                     `json:"description,omitempty"`
	OperationID string                     `json:"operationId"`
	Tags        []string                   `json:"tags,omitempty"`
	Parameters  []OpenAPIParameter         `json:"parameters,omitempty"`
	RequestBody *OpenAPIRequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]OpenAPIResponse `json:"responses"`
}

// OpenAPIParameter describes a parameter.
type OpenAPIParameter struct {
	Name        string        `json:"name"`
	In          string        `json:"in"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required"`
	Schema      OpenAPISchema `json:"schema"`
}

// OpenAPIRequestBody describes a request body.
type OpenAPIRequestBody struct {
	Description string                      `json:"description,omitempty"`
	Required    bool                        `json:"required"`
	Content     map[string]OpenAPIMediaType `json:"content"`
}

// OpenAPIResponse describes a response.
type OpenAPIResponse struct {
	Description string                      `json:"description"`
	Content     map[string]OpenAPIMediaType `json:"content,omitempty"`
}

// OpenAPIMediaType describes a media type.
type OpenAPIMediaType struct {
	Schema OpenAPISchema `json:"schema"`
}

// OpenAPISchema describes a schema.
type OpenAPISchema struct {
	Type        string                   `json:"type,omitempty"`
	Format      string                   `json:"format,omitempty"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]OpenAPISchema `json:"properties,omitempty"`
	Items       *OpenAPISchema           `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
	Enum        []string                 `json:"enum,omitempty"`
	Minimum     *int                     `json:"minimum,omitempty"`
	MaxItems    *int                     `json:"maxItems,omitempty"`
	Default     any                      `json:"default,omitempty"`
	Ref         string                   `json:"$ref,omitempty"`
}

// OpenAPIComponents contains reusable components.
type OpenAPIComponents struct {
	Schemas map[string]OpenAPISchema `json:"schemas"`
}

// handleOpenAPI handles the GET /v1/openapi.json endpoint.
func (s *Server) handleOpenAPI(c *gin.Context) {
	s.respondJSON(c, http.StatusOK, BuildOpenAPISpec())
}

func ref(name string) OpenAPISchema {
	return OpenAPISchema{Ref: "#/components/schemas/" + name}
}

func jsonResponse(description, schema string) OpenAPIResponse {
	return OpenAPIResponse{
		Description: description,
		Content: map[string]OpenAPIMediaType{
			"application/json": {Schema: ref(schema)},
		},
	}
}

func errorResponse(description string) OpenAPIResponse {
	return jsonResponse(description, "ErrorResponse")
}

func str(description string) OpenAPISchema {
	return OpenAPISchema{Type: "string", Description: description}
}

func intPtr(n int) *int { return &n }

var knowledgeBaseNameParam = OpenAPIParameter{
	Name:        "name",
	In:          "path",
	Description: "Knowledge base name",
	Required:    true,
	Schema:      OpenAPISchema{Type: "string"},
}

// BuildOpenAPISpec constructs the OpenAPI v3 document. It is exported for
// the openapi command.
func BuildOpenAPISpec() OpenAPISpec {
	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "pgEdge Ask Gateway API",
			Description: "REST API for asking questions of hosted knowledge bases",
			Version:     "1.0.0",
		},
		Servers: []OpenAPIServer{
			{URL: APIPrefix, Description: "API v1"},
		},
		Paths: map[string]OpenAPIPath{
			"/health": {
				Get: &OpenAPIOperation{
					Summary:     "Health check",
					Description: "Check if the server is running and healthy",
					OperationID: "getHealth",
					Tags:        []string{"System"},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Server is healthy", "HealthResponse"),
					},
				},
			},
			"/knowledge-bases": {
				Get: &OpenAPIOperation{
					Summary:     "List knowledge bases",
					OperationID: "listKnowledgeBases",
					Tags:        []string{"Knowledge Bases"},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Configured knowledge bases", "KnowledgeBasesResponse"),
					},
				},
			},
			"/knowledge-bases/{name}/suggestions": {
				Get: &OpenAPIOperation{
					Summary:     "List suggested questions",
					OperationID: "listSuggestions",
					Tags:        []string{"Knowledge Bases"},
					Parameters: []OpenAPIParameter{
						knowledgeBaseNameParam,
						{
							Name:        "q",
							In:          "query",
							Description: "Partially typed question; suggestions are ranked by relevance to it",
							Schema:      OpenAPISchema{Type: "string"},
						},
						{
							Name:        "limit",
							In:          "query",
							Description: "Maximum number of suggestions",
							Schema: OpenAPISchema{
								Type:    "integer",
								Minimum: intPtr(1),
								Default: 5,
							},
						},
					},
					Responses: map[string]OpenAPIResponse{
						"200": jsonResponse("Suggested questions", "SuggestionsResponse"),
						"400": errorResponse("Invalid limit"),
						"404": errorResponse("Knowledge base not found"),
					},
				},
			},
			"/knowledge-bases/{name}/ask": {
				Post: &OpenAPIOperation{
					Summary: "Ask a question",
					Description: "Ask a knowledge base. With stream=true the answer is sent " +
						"as Server-Sent Events carrying the accumulated text.",
					OperationID: "ask",
					Tags:        []string{"Knowledge Bases"},
					Parameters:  []OpenAPIParameter{knowledgeBaseNameParam},
					RequestBody: &OpenAPIRequestBody{
						Required: true,
						Content: map[string]OpenAPIMediaType{
							"application/json": {Schema: ref("AskRequest")},
						},
					},
					Responses: map[string]OpenAPIResponse{
						"200": {
							Description: "Answer",
							Content: map[string]OpenAPIMediaType{
								"application/json": {Schema: ref("AskResponse")},
								"text/event-stream": {Schema: OpenAPISchema{
									Type:        "string",
									Description: "Server-Sent Events stream of StreamEvent objects",
								}},
							},
						},
						"400": errorResponse("Invalid request"),
						"404": errorResponse("Knowledge base not found"),
						"499": errorResponse("Request cancelled by the client"),
						"502": errorResponse("Knowledge base service failed"),
					},
				},
			},
		},
		Components: OpenAPIComponents{Schemas: componentSchemas()},
	}
}

func componentSchemas() map[string]OpenAPISchema {
	return map[string]OpenAPISchema{
		"HealthResponse": {
			Type:       "object",
			Properties: map[string]OpenAPISchema{"status": str("Health status")},
			Required:   []string{"status"},
		},
		"KnowledgeBasesResponse": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"knowledge_bases": {
					Type:  "array",
					Items: &OpenAPISchema{Ref: "#/components/schemas/KnowledgeBaseInfo"},
				},
			},
			Required: []string{"knowledge_bases"},
		},
		"KnowledgeBaseInfo": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"name":        str("Knowledge base name"),
				"description": str("Knowledge base description"),
				"mode": {
					Type:        "string",
					Description: "How answers are produced",
					Enum:        []string{"stream", "schema"},
				},
			},
			Required: []string{"name", "mode"},
		},
		"SuggestionsResponse": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"suggestions": {
					Type: "array",
					Items: &OpenAPISchema{
						Type: "object",
						Properties: map[string]OpenAPISchema{
							"id":   str("Suggestion identifier"),
							"text": str("Suggested question"),
						},
						Required: []string{"id", "text"},
					},
				},
			},
			Required: []string{"suggestions"},
		},
		"AskRequest": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"query": str("The question to ask"),
				"top_k": {
					Type:        "integer",
					Description: "Override the number of retrieved passages",
					Minimum:     intPtr(0),
				},
				"stream": {
					Type:        "boolean",
					Description: "Stream the answer as Server-Sent Events",
					Default:     false,
				},
				"render_html": {
					Type:        "boolean",
					Description: "Include the answer rendered from markdown to HTML",
					Default:     false,
				},
			},
			Required: []string{"query"},
		},
		"AskResponse": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"message":  ref("ChatMessage"),
				"response": str("Raw answer text; JSON text for chart answers"),
				"charts": {
					Type:        "array",
					Description: "Charts parsed from a chart answer",
					MaxItems:    intPtr(3),
					Items:       &OpenAPISchema{Ref: "#/components/schemas/Chart"},
				},
				"chart_error": str("Why a chart answer could not be used"),
				"original_resources": {
					Type:        "object",
					Description: "Retrieval payload as delivered by the knowledge base",
				},
				"citations": {
					Type:        "array",
					Description: "Citations in delivery order",
					Items: &OpenAPISchema{
						Type: "object",
						Properties: map[string]OpenAPISchema{
							"id":   str("Paragraph key, when known"),
							"data": {Type: "object", Description: "Citation payload"},
						},
					},
				},
				"html": str("Answer rendered as HTML"),
			},
			Required: []string{"message", "response"},
		},
		"ChatMessage": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"id":          str("Message identifier"),
				"text":        str("Message text"),
				"author_id":   str("Author identifier"),
				"author_name": str("Author display name"),
				"timestamp":   {Type: "string", Format: "date-time"},
			},
			Required: []string{"id", "text", "author_id", "author_name", "timestamp"},
		},
		"Chart": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"title":      str("Chart title"),
				"categories": {Type: "array", Items: &OpenAPISchema{Type: "string"}},
				"series": {
					Type: "array",
					Items: &OpenAPISchema{
						Type: "object",
						Properties: map[string]OpenAPISchema{
							"name": str("Series name"),
							"data": {
								Type:  "array",
								Items: &OpenAPISchema{Type: "number", Format: "double"},
							},
						},
						Required: []string{"name", "data"},
					},
				},
			},
			Required: []string{"title", "categories", "series"},
		},
		"StreamEvent": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"type": {
					Type: "string",
					Enum: []string{"update", "result", "error", "done"},
				},
				"content": str("Accumulated answer text (update events)"),
				"result":  ref("AskResponse"),
				"error":   str("Error message (error events)"),
				"code":    str("Error code (error events)"),
			},
			Required: []string{"type"},
		},
		"ErrorResponse": {
			Type:       "object",
			Properties: map[string]OpenAPISchema{"error": ref("ErrorDetail")},
			Required:   []string{"error"},
		},
		"ErrorDetail": {
			Type: "object",
			Properties: map[string]OpenAPISchema{
				"code":    str("Error code"),
				"message": str("Error message"),
			},
			Required: []string{"code", "message"},
		},
	}
}
