//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package nuclia provides a client for the ask endpoint of a Nuclia
// knowledge box.
package nuclia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	baseURLTemplate = "https://%s.nuclia.cloud/api/v1/kb/%s"
	authHeader      = "X-NUCLIA-SERVICEACCOUNT"
	userAgent       = "pgedge-ask-gateway"
)

// Client talks to a single knowledge box. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	knowledgeBoxID string
}

// NewClient creates a client for the knowledge box kbID in the given zone.
// No timeout is set on the underlying HTTP client; callers bound each call
// with their context.
func NewClient(zoneID, kbID, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		baseURL:        fmt.Sprintf(baseURLTemplate, zoneID, kbID),
		apiKey:         apiKey,
		knowledgeBoxID: kbID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (the knowledge box root, without the
// trailing /ask).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets an overall HTTP timeout. Streams that outlive it are cut.
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// KnowledgeBoxID returns the id of the knowledge box this client targets.
func (c *Client) KnowledgeBoxID() string {
	return c.knowledgeBoxID
}

// BaseURL returns the knowledge box root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// request makes an HTTP request to the knowledge box API.
func (c *Client) request(
	ctx context.Context,
	method, path string,
	body interface{},
	headers map[string]string,
) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(authHeader, "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{
			Code:      ErrCodeNetworkError,
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Err:       err,
		}
	}

	return resp, nil
}

// Error is returned for failed calls to the knowledge box API.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("nuclia API error (status %d): %s", e.StatusCode, e.Message)
	}
	return "nuclia: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeServerError  = "server_error"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNetworkError = "network_error"
	ErrCodeStreamError  = "stream_error"
	ErrCodeDecodeError  = "decode_error"
)

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// errorResponse is the error body returned by the API. detail is either a
// string or a list of validation problems.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// parseError extracts error information from an API response.
func parseError(resp *http.Response) error {
	e := &Error{StatusCode: resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.Code = ErrCodeUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case resp.StatusCode >= 500:
		e.Code = ErrCodeServerError
		e.Retryable = true
	default:
		e.Code = ErrCodeBadRequest
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		e.Message = "failed to read body"
		return e
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Detail) == 0 {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return e
	}

	var detail string
	if err := json.Unmarshal(errResp.Detail, &detail); err == nil {
		e.Message = detail
	} else {
		e.Message = string(errResp.Detail)
	}

	return e
}
