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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pgEdge/pgedge-ask-gateway/internal/answer"
	"github.com/pgEdge/pgedge-ask-gateway/internal/ask"
	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/nuclia"
	"github.com/pgEdge/pgedge-ask-gateway/internal/suggestions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockManager implements KnowledgeBaseManager for testing.
type mockManager struct {
	infos   []ask.Info
	AskFunc func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error)

	lastName  string
	lastQuery string
	lastOpts  int
}

func newMockManager() *mockManager {
	return &mockManager{
		infos: []ask.Info{
			{Name: "default", Description: "General questions", Mode: "stream"},
			{Name: "charts", Description: "Charts", Mode: "schema"},
			{Name: "verse", Description: "Verse", Mode: "stream"},
		},
	}
}

func (m *mockManager) List() []ask.Info {
	return m.infos
}

func (m *mockManager) Ask(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
	opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
	m.lastName = name
	m.lastQuery = query
	m.lastOpts = len(opts)
	if m.AskFunc != nil {
		return m.AskFunc(ctx, name, query, onUpdate, opts...)
	}
	return &answer.StreamingAskResult{}, nil
}

func (m *mockManager) Close() error {
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddress = "127.0.0.1"
	return cfg
}

func testServer(m *mockManager) *Server {
	store := suggestions.NewStaticStore(map[string][]string{
		"default": {"What is pgEdge?", "How does replication work?", "Which regions exist?"},
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(testConfig(), m, store, logger)
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(newMockManager())

	w := do(srv, http.MethodGet, "/v1/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", resp.Status)
	}

	if link := w.Header().Get("Link"); link != `</v1/openapi.json>; rel="service-desc"` {
		t.Errorf("unexpected Link header %q", link)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := testServer(newMockManager())

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(newMockManager())

	w := do(srv, http.MethodPost, "/v1/health", "")

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
	if detail := decodeError(t, w); detail.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("expected METHOD_NOT_ALLOWED, got %s", detail.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(newMockManager())

	w := do(srv, http.MethodGet, "/v1/nowhere", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if detail := decodeError(t, w); detail.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", detail.Code)
	}
}

func TestListKnowledgeBases(t *testing.T) {
	srv := testServer(newMockManager())

	w := do(srv, http.MethodGet, "/v1/knowledge-bases", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var resp KnowledgeBasesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.KnowledgeBases) != 3 {
		t.Fatalf("expected 3 knowledge bases, got %d", len(resp.KnowledgeBases))
	}
	if resp.KnowledgeBases[1].Name != "charts" || resp.KnowledgeBases[1].Mode != "schema" {
		t.Errorf("unexpected second knowledge base: %+v", resp.KnowledgeBases[1])
	}
}

func TestSuggestions(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
		wantCode   string
	}{
		{"default limit", "/v1/knowledge-bases/default/suggestions", http.StatusOK, 3, ""},
		{"explicit limit", "/v1/knowledge-bases/default/suggestions?limit=2", http.StatusOK, 2, ""},
		{"ranked by question", "/v1/knowledge-bases/default/suggestions?q=replication", http.StatusOK, 1, ""},
		{"none configured", "/v1/knowledge-bases/verse/suggestions", http.StatusOK, 0, ""},
		{"bad limit", "/v1/knowledge-bases/default/suggestions?limit=x", http.StatusBadRequest, 0, "INVALID_REQUEST"},
		{"zero limit", "/v1/knowledge-bases/default/suggestions?limit=0", http.StatusBadRequest, 0, "INVALID_REQUEST"},
		{"unknown kb", "/v1/knowledge-bases/sonnets/suggestions", http.StatusNotFound, 0, "KNOWLEDGE_BASE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(newMockManager())
			w := do(srv, http.MethodGet, tt.path, "")

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantCode != "" {
				if detail := decodeError(t, w); detail.Code != tt.wantCode {
					t.Errorf("expected code %s, got %s", tt.wantCode, detail.Code)
				}
				return
			}

			var resp SuggestionsResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Suggestions == nil {
				t.Error("expected an empty list, not null")
			}
			if len(resp.Suggestions) != tt.wantCount {
				t.Errorf("expected %d suggestions, got %d", tt.wantCount, len(resp.Suggestions))
			}
		})
	}
}

func TestAsk_InvalidRequests(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown kb", "/v1/knowledge-bases/sonnets/ask", `{"query":"q"}`,
			http.StatusNotFound, "KNOWLEDGE_BASE_NOT_FOUND"},
		{"bad json", "/v1/knowledge-bases/default/ask", `{bad`,
			http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty query", "/v1/knowledge-bases/default/ask", `{"query":"   "}`,
			http.StatusBadRequest, "INVALID_REQUEST"},
		{"negative top_k", "/v1/knowledge-bases/default/ask", `{"query":"q","top_k":-1}`,
			http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockManager()
			srv := testServer(m)
			w := do(srv, http.MethodPost, tt.path, tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if detail := decodeError(t, w); detail.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, detail.Code)
			}
			if m.lastName != "" {
				t.Errorf("knowledge base should not have been asked, got %q", m.lastName)
			}
		})
	}
}

func TestAsk_Stream(t *testing.T) {
	m := newMockManager()
	m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
		onUpdate("pgEdge is ")
		onUpdate("pgEdge is distributed Postgres.")
		return &answer.StreamingAskResult{
			Response: "pgEdge is distributed Postgres.",
			Citations: answer.IndexCitations([]answer.Citation{
				{ID: "p1", Data: json.RawMessage(`[[0,10]]`)},
			}),
		}, nil
	}
	srv := testServer(m)

	w := do(srv, http.MethodPost, "/v1/knowledge-bases/default/ask",
		`{"query":"What is pgEdge?","top_k":3,"stream":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	if m.lastQuery != "What is pgEdge?" || m.lastOpts != 1 {
		t.Errorf("unexpected ask: query=%q opts=%d", m.lastQuery, m.lastOpts)
	}

	events := readSSE(t, w.Body)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != "update" || events[0].Content != "pgEdge is " {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Content != "pgEdge is distributed Postgres." {
		t.Errorf("expected accumulated content, got %q", events[1].Content)
	}
	if events[2].Type != "result" || events[2].Result == nil {
		t.Fatalf("expected result event, got %+v", events[2])
	}
	if events[2].Result.Message.Text != "pgEdge is distributed Postgres." {
		t.Errorf("unexpected result message: %q", events[2].Result.Message.Text)
	}
	if len(events[2].Result.Citations) != 1 || events[2].Result.Citations[0].ID != "p1" {
		t.Errorf("unexpected citations: %+v", events[2].Result.Citations)
	}
	if events[3].Type != "done" {
		t.Errorf("expected done event, got %+v", events[3])
	}
}

func TestAsk_StreamRemoteError(t *testing.T) {
	m := newMockManager()
	m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
		onUpdate("partial")
		return &answer.StreamingAskResult{Response: "partial"}, &ask.RemoteCallError{
			Target: ask.TargetDefault,
			Err:    &nuclia.Error{StatusCode: http.StatusBadGateway, Message: "upstream down"},
		}
	}
	srv := testServer(m)

	w := do(srv, http.MethodPost, "/v1/knowledge-bases/default/ask", `{"query":"q","stream":true}`)

	events := readSSE(t, w.Body)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[1].Type != "error" || events[1].Code != "REMOTE_ERROR" {
		t.Errorf("expected remote error event, got %+v", events[1])
	}
	if events[2].Type != "done" {
		t.Errorf("expected done event, got %+v", events[2])
	}
}

func TestAsk_NonStream(t *testing.T) {
	m := newMockManager()
	m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
		return &answer.StreamingAskResult{
			Response:          "Use **BDR**.",
			OriginalResources: json.RawMessage(`{"r1":{"title":"Doc"}}`),
		}, nil
	}
	srv := testServer(m)

	w := do(srv, http.MethodPost, "/v1/knowledge-bases/verse/ask",
		`{"query":"q","render_html":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if m.lastName != "verse" || m.lastOpts != 0 {
		t.Errorf("unexpected ask: name=%q opts=%d", m.lastName, m.lastOpts)
	}
	if resp.Response != "Use **BDR**." {
		t.Errorf("unexpected response %q", resp.Response)
	}
	if resp.Message.AuthorName != "Assistant (verse)" {
		t.Errorf("unexpected author %q", resp.Message.AuthorName)
	}
	if !strings.Contains(resp.HTML, "<strong>BDR</strong>") {
		t.Errorf("expected rendered HTML, got %q", resp.HTML)
	}
	if string(resp.OriginalResources) != `{"r1":{"title":"Doc"}}` {
		t.Errorf("unexpected resources %s", resp.OriginalResources)
	}
	if resp.Charts != nil || resp.ChartError != "" {
		t.Errorf("stream knowledge bases must not produce charts: %+v", resp)
	}
}

func TestAsk_Charts(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantCharts     int
		wantText       string
		wantChartError bool
	}{
		{
			name: "valid chart answer",
			response: `{"answer":"Sales grew.","charts":[{"title":"Sales",` +
				`"categories":["2023","2024"],"series":[{"name":"EUR","data":[1,2]}]}]}`,
			wantCharts: 1,
			wantText:   "Sales grew.",
		},
		{
			name:           "not json falls back to text",
			response:       "plain text",
			wantText:       "plain text",
			wantChartError: true,
		},
		{
			name: "misaligned series is reported",
			response: `{"answer":"Sales grew.","charts":[{"title":"Sales",` +
				`"categories":["2023","2024"],"series":[{"name":"EUR","data":[1]}]}]}`,
			wantCharts:     1,
			wantText:       "Sales grew.",
			wantChartError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockManager()
			m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
				opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
				return &answer.StreamingAskResult{Response: tt.response}, nil
			}
			srv := testServer(m)

			w := do(srv, http.MethodPost, "/v1/knowledge-bases/charts/ask", `{"query":"q"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}

			var resp AskResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Charts) != tt.wantCharts {
				t.Errorf("expected %d charts, got %d", tt.wantCharts, len(resp.Charts))
			}
			if resp.Message.Text != tt.wantText {
				t.Errorf("expected message %q, got %q", tt.wantText, resp.Message.Text)
			}
			if (resp.ChartError != "") != tt.wantChartError {
				t.Errorf("unexpected chart error %q", resp.ChartError)
			}
			if resp.Response != tt.response {
				t.Errorf("raw response must be preserved, got %q", resp.Response)
			}
		})
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "cancelled",
			err:        fmt.Errorf("%w: %w", ask.ErrCancelled, context.Canceled),
			wantStatus: StatusClientClosedRequest,
			wantCode:   "CANCELLED",
		},
		{
			name:       "remote failure",
			err:        &ask.RemoteCallError{Target: ask.TargetVerse, Err: errors.New("boom")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "REMOTE_ERROR",
		},
		{
			name:       "not found",
			err:        fmt.Errorf("%w: verse", ask.ErrKnowledgeBaseNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "KNOWLEDGE_BASE_NOT_FOUND",
		},
		{
			name:       "other",
			err:        errors.New("unexpected"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockManager()
			m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
				opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
				return nil, tt.err
			}
			srv := testServer(m)

			w := do(srv, http.MethodPost, "/v1/knowledge-bases/verse/ask", `{"query":"q"}`)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if detail := decodeError(t, w); detail.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, detail.Code)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	m := newMockManager()
	m.AskFunc = func(ctx context.Context, name, query string, onUpdate ask.UpdateFunc,
		opts ...ask.AskOption) (*answer.StreamingAskResult, error) {
		panic("boom")
	}
	srv := testServer(m)

	w := do(srv, http.MethodPost, "/v1/knowledge-bases/default/ask", `{"query":"q"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if detail := decodeError(t, w); detail.Code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", detail.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS = config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
	}
	srv := New(cfg, newMockManager(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodOptions, "/v1/knowledge-bases/default/ask", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected allowed origin %q", got)
	}
}

func TestSuggestions_NilStore(t *testing.T) {
	srv := New(testConfig(), newMockManager(), nil, nil)

	w := do(srv, http.MethodGet, "/v1/knowledge-bases/default/suggestions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"suggestions":[]}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	srv := testServer(newMockManager())

	w := do(srv, http.MethodGet, "/v1/openapi.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var doc OpenAPISpec
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("failed to decode document: %v", err)
	}
	if doc.OpenAPI != "3.0.3" {
		t.Errorf("unexpected OpenAPI version %q", doc.OpenAPI)
	}
	for _, path := range []string{
		"/health",
		"/knowledge-bases",
		"/knowledge-bases/{name}/suggestions",
		"/knowledge-bases/{name}/ask",
	} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("missing path %s", path)
		}
	}

	// Every $ref must resolve to a component.
	data, _ := json.Marshal(doc)
	for _, part := range strings.Split(string(data), `"$ref":"#/components/schemas/`)[1:] {
		name := part[:strings.Index(part, `"`)]
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("dangling reference to %s", name)
		}
	}
}

func readSSE(t *testing.T, r io.Reader) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected SSE line %q", line)
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			t.Fatalf("failed to decode event %q: %v", data, err)
		}
		events = append(events, event)
	}
	return events
}
